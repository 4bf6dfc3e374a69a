// Package codec converts between the inverter's time-of-use register frame
// and structured schedule periods. It performs no I/O.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"battery_scheduler/internal/models"
)

// Frame layout: word 0 holds the period count, followed by four words per
// period (start, end, charge flag, days mask), zero-padded to FrameWidth.
const (
	MaxPeriods      = 10
	ValuesPerPeriod = 4
	MinFrameLen     = 1 + ValuesPerPeriod*MaxPeriods // 41
	FrameWidth      = 43
)

var (
	ErrShortFrame     = errors.New("register frame is empty")
	ErrPeriodCount    = fmt.Errorf("period count exceeds %d", MaxPeriods)
	ErrTruncatedFrame = errors.New("register frame truncated mid-period")
	ErrOddByteCount   = errors.New("register payload has an odd number of bytes")
)

// ValidationError reports a period list the device cannot accept.
type ValidationError struct {
	Index  int // -1 when the list as a whole is invalid
	Reason error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return "invalid schedule: " + e.Reason.Error()
	}
	return fmt.Sprintf("invalid schedule period %d: %v", e.Index+1, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Decode parses a register frame. A count above MaxPeriods is rejected.
// If the frame ends before a claimed period is complete, the periods read so
// far are returned together with ErrTruncatedFrame and the read must be
// treated as failed. A period the device could not accept back is reported
// as a *ValidationError in the same way.
func Decode(regs []uint16) (models.Schedule, error) {
	if len(regs) == 0 {
		return models.Schedule{}, ErrShortFrame
	}
	count := int(regs[0])
	if count > MaxPeriods {
		return models.Schedule{}, fmt.Errorf("decode: count %d: %w", count, ErrPeriodCount)
	}

	sched := models.Schedule{
		Periods: make([]models.Period, 0, count),
		Raw:     append([]uint16(nil), regs...),
	}
	for i := 0; i < count; i++ {
		base := 1 + i*ValuesPerPeriod
		if base+ValuesPerPeriod > len(regs) {
			sched.NumPeriods = len(sched.Periods)
			return sched, fmt.Errorf("decode: period %d of %d: %w", i+1, count, ErrTruncatedFrame)
		}
		p := models.Period{
			StartMinutes: int(regs[base]),
			EndMinutes:   int(regs[base+1]),
			Charging:     regs[base+2] == models.ChargeFlagCharge,
			Days:         models.DayMask(regs[base+3]),
		}
		if err := p.Validate(); err != nil {
			sched.NumPeriods = len(sched.Periods)
			return sched, fmt.Errorf("decode: %w", &ValidationError{Index: i, Reason: err})
		}
		sched.Periods = append(sched.Periods, p)
	}
	sched.NumPeriods = len(sched.Periods)
	return sched, nil
}

// Encode renders periods, in the given order, as a FrameWidth register frame.
func Encode(periods []models.Period) ([]uint16, error) {
	if len(periods) > MaxPeriods {
		return nil, &ValidationError{Index: -1, Reason: fmt.Errorf("%d periods: %w", len(periods), ErrPeriodCount)}
	}
	frame := make([]uint16, FrameWidth)
	frame[0] = uint16(len(periods))
	for i, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, &ValidationError{Index: i, Reason: err}
		}
		base := 1 + i*ValuesPerPeriod
		frame[base] = uint16(p.StartMinutes)
		frame[base+1] = uint16(p.EndMinutes)
		frame[base+2] = p.ChargeFlag()
		frame[base+3] = uint16(p.Days)
	}
	return frame, nil
}

// Build sorts a copy of periods by start time and encodes it into a Schedule
// ready for transmission.
func Build(periods []models.Period) (models.Schedule, error) {
	sorted := SortByStart(periods)
	raw, err := Encode(sorted)
	if err != nil {
		return models.Schedule{}, err
	}
	return models.Schedule{NumPeriods: len(sorted), Periods: sorted, Raw: raw}, nil
}

// SortByStart returns a start-ordered copy; equal starts keep their input order.
func SortByStart(periods []models.Period) []models.Period {
	out := append([]models.Period(nil), periods...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMinutes < out[j].StartMinutes })
	return out
}

// WordsFromBytes splits a big-endian Modbus register payload into words.
func WordsFromBytes(b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddByteCount
	}
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return words, nil
}

// BytesFromWords is the inverse of WordsFromBytes.
func BytesFromWords(words []uint16) []byte {
	b := make([]byte, 2*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(b[2*i:], w)
	}
	return b
}
