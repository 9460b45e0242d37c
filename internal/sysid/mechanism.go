package sysid

import (
	"errors"

	"github.com/san-kum/sysid/internal/command"
	"github.com/san-kum/sysid/internal/units"
)

var (
	ErrNilDrive     = errors.New("sysid: mechanism drive callback is nil")
	ErrNilSubsystem = errors.New("sysid: mechanism subsystem is nil")
)

// DriveFunc sends a voltage to the mechanism's motors. It is called every tick
// of a test and once with 0 V when the test ends; it must not block.
type DriveFunc func(units.Voltage)

// LogFunc records motor frames through the supplied log. It may record any
// number of frames per call and must not block.
type LogFunc func(*RoutineLog)

// Mechanism is the hardware interface a routine drives.
type Mechanism struct {
	drive     DriveFunc
	log       LogFunc
	subsystem command.Subsystem
	name      string
}

// NewMechanism describes a mechanism. A nil log records nothing; an empty name
// falls back to the subsystem name. The subsystem is declared as a
// requirement of every test command.
func NewMechanism(drive DriveFunc, log LogFunc, subsystem command.Subsystem, name string) (Mechanism, error) {
	if drive == nil {
		return Mechanism{}, ErrNilDrive
	}
	if subsystem == nil {
		return Mechanism{}, ErrNilSubsystem
	}
	if log == nil {
		log = func(*RoutineLog) {}
	}
	if name == "" {
		name = subsystem.Name()
	}
	return Mechanism{
		drive:     drive,
		log:       log,
		subsystem: subsystem,
		name:      name,
	}, nil
}

func (m Mechanism) Name() string                 { return m.name }
func (m Mechanism) Subsystem() command.Subsystem { return m.subsystem }
