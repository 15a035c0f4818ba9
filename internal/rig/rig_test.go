package rig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheExpiresAfterLifetime(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set(IfSnapshot{Frequency: 14070000})

	snap, ok := c.Get()
	require.True(t, ok)
	require.EqualValues(t, 14070000, snap.Frequency)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get()
	require.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(time.Hour)
	c.Set(IfSnapshot{Frequency: 7040000})
	c.Invalidate()
	_, ok := c.Get()
	require.False(t, ok)
}

func TestLimitsEmptyMeansUnrestricted(t *testing.T) {
	var l Limits
	require.True(t, l.CheckRX(14070000))
	require.True(t, l.CheckTX(14070000))
}

func TestLimitsRejectsOutOfBand(t *testing.T) {
	l := Limits{
		TX: []BandLimit{{Name: "20m", Low: 14000000, High: 14350000}},
	}
	require.True(t, l.CheckTX(14070000))
	require.False(t, l.CheckTX(14500000))
	require.True(t, l.CheckRX(99999999)) // RX list empty: unrestricted
}

func TestRateLimiterEnforcesMinGap(t *testing.T) {
	r := NewRateLimiter(30*time.Millisecond, nil)
	start := time.Now()
	r.Wait("FA")
	r.Wait("FA")
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRateLimiterAppliesExtraDelayToNextCommand(t *testing.T) {
	r := NewRateLimiter(0, map[string]time.Duration{"MD": 20 * time.Millisecond})

	r.Wait("MD") // incurs no delay itself; sets up settling time for whoever sends next

	start := time.Now()
	r.Wait("FA") // pays MD's settling time, since it's the next command issued
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRateLimiterExtraDelayIsConsumedOnce(t *testing.T) {
	r := NewRateLimiter(0, map[string]time.Duration{"MD": 20 * time.Millisecond})

	r.Wait("MD")
	r.Wait("FA") // consumes MD's settling time

	start := time.Now()
	r.Wait("FA") // MD's settling time already spent; no extra delay left to pay
	require.Less(t, time.Since(start), 10*time.Millisecond)
}

// stubRig is a minimal Rig that records whether its mutating methods were
// reached, so LimitedRig tests can check that an out-of-band call never
// makes it past the guard.
type stubRig struct{ called bool }

func (s *stubRig) Close() error                                        { return nil }
func (s *stubRig) SetFrequency(VFO, uint64) error                      { s.called = true; return nil }
func (s *stubRig) GetFrequency(VFO) (uint64, error)                    { return 0, nil }
func (s *stubRig) SetSplitFrequency(uint64, uint64) error              { s.called = true; return nil }
func (s *stubRig) GetSplitFrequency() (uint64, uint64, error)          { return 0, 0, nil }
func (s *stubRig) SetDuplex(uint64, Mode, uint64, Mode) error          { s.called = true; return nil }
func (s *stubRig) GetDuplex() (uint64, Mode, uint64, Mode, error)      { return 0, ModeUnknown, 0, ModeUnknown, nil }
func (s *stubRig) SetMode(Mode) error                                  { return nil }
func (s *stubRig) GetMode() (Mode, error)                              { return ModeUnknown, nil }
func (s *stubRig) SetVFO(VFO) error                                    { return nil }
func (s *stubRig) GetVFO() (VFO, error)                                { return VFOUnknown, nil }
func (s *stubRig) SetPTT(bool) error                                   { return nil }
func (s *stubRig) GetPTT() (bool, error)                               { return false, nil }
func (s *stubRig) SetRIT(int, bool) error                              { return nil }
func (s *stubRig) GetRIT() (int, bool, error)                          { return 0, false, nil }
func (s *stubRig) SetXIT(int, bool) error                              { return nil }
func (s *stubRig) GetXIT() (int, bool, error)                          { return 0, false, nil }
func (s *stubRig) SetReverse(bool) error                               { return nil }
func (s *stubRig) GetReverse() (bool, error)                           { return false, nil }
func (s *stubRig) GetSquelch() (bool, error)                           { return false, nil }
func (s *stubRig) GetSMeter() (int, error)                             { return 0, nil }
func (s *stubRig) Snapshot() (IfSnapshot, error)                       { return IfSnapshot{}, nil }

func TestLimitedRigRejectsSetFrequencyOutsideRX(t *testing.T) {
	stub := &stubRig{}
	l := NewLimitedRig(stub, Limits{RX: []BandLimit{{Name: "20m", Low: 14000000, High: 14350000}}})

	err := l.SetFrequency(VFOA, 21000000)
	require.Error(t, err)
	require.False(t, stub.called)

	require.NoError(t, l.SetFrequency(VFOA, 14070000))
	require.True(t, stub.called)
}

func TestLimitedRigSplitFrequencyChecksEachLegAgainstItsOwnList(t *testing.T) {
	limits := Limits{
		RX: []BandLimit{{Name: "20m", Low: 14000000, High: 14350000}},
		TX: []BandLimit{{Name: "40m", Low: 7000000, High: 7300000}},
	}

	stub := &stubRig{}
	l := NewLimitedRig(stub, limits)
	require.Error(t, l.SetSplitFrequency(14070000, 14073000)) // TX leg not in 40m
	require.False(t, stub.called)

	stub = &stubRig{}
	l = NewLimitedRig(stub, limits)
	require.Error(t, l.SetSplitFrequency(7070000, 7073000)) // RX leg not in 20m
	require.False(t, stub.called)

	stub = &stubRig{}
	l = NewLimitedRig(stub, limits)
	require.NoError(t, l.SetSplitFrequency(14070000, 7073000))
	require.True(t, stub.called)
}

func TestLimitedRigSetDuplexChecksBothLegs(t *testing.T) {
	limits := Limits{
		RX: []BandLimit{{Name: "2m", Low: 144000000, High: 148000000}},
		TX: []BandLimit{{Name: "2m", Low: 144000000, High: 148000000}},
	}
	stub := &stubRig{}
	l := NewLimitedRig(stub, limits)

	require.Error(t, l.SetDuplex(146520000, ModeFM, 99999999, ModeFM))
	require.False(t, stub.called)
	require.NoError(t, l.SetDuplex(146520000, ModeFM, 146940000, ModeFM))
	require.True(t, stub.called)
}
