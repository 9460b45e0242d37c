package datalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/xid"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string    `json:"id"`
	Mechanism   string    `json:"mechanism"`
	Plant       string    `json:"plant"`
	Timestamp   time.Time `json:"timestamp"`
	RampRate    float64   `json:"ramp_rate_v_per_s"`
	StepVoltage float64   `json:"step_voltage_v"`
	Timeout     float64   `json:"timeout_s"`
	Period      float64   `json:"period_s"`
	Tests       []string  `json:"tests"`
	Entries     int       `json:"entries"`
	Database    string    `json:"database,omitempty"`
}

// Save writes metadata.json and entries.csv into a new run directory and
// returns the run id. meta.ID is assigned when empty.
func (s *Store) Save(meta RunMetadata, entries []Entry) (string, error) {
	meta.Entries = len(entries)
	id, err := s.SaveMetadata(meta)
	if err != nil {
		return "", err
	}
	if err := s.saveEntries(id, entries); err != nil {
		return "", err
	}
	return id, nil
}

// SaveMetadata writes only metadata.json. Runs saved this way are listed but
// have no entries.csv; their data lives in meta.Database.
func (s *Store) SaveMetadata(meta RunMetadata) (string, error) {
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%s", meta.Mechanism, xid.New().String())
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) saveEntries(runID string, entries []Entry) error {
	csvFile, err := os.Create(filepath.Join(s.baseDir, runID, "entries.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"timestamp", "key", "kind", "unit", "value"}); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatFloat(e.Timestamp.Seconds(), 'f', 6, 64),
			e.Key,
			string(e.Kind),
			e.Unit,
			e.Value(),
		}
		if e.Kind == KindDouble {
			row[4] = strconv.FormatFloat(e.Num, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	dirs, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		meta, err := s.Load(d.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadEntries reads back the entries of a run. Malformed rows are skipped.
func (s *Store) LoadEntries(runID string) ([]Entry, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "entries.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 5 {
			continue
		}
		secs, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		ts := time.Duration(secs * float64(time.Second)).Round(time.Microsecond)

		switch Kind(rec[2]) {
		case KindString:
			entries = append(entries, String(rec[1], rec[4], ts))
		case KindDouble:
			v, err := strconv.ParseFloat(rec[4], 64)
			if err != nil {
				continue
			}
			entries = append(entries, Double(rec[1], v, rec[3], ts))
		}
	}
	return entries, nil
}
