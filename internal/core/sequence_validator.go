package core

import (
	"fmt"
)

// SequenceValidator validates source sequences per partition (one partition
// per market plus a global one). Not thread-safe; only the single-threaded
// core touches it.
type SequenceValidator struct {
	expectedNext map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNext: make(map[string]int64),
	}
}

// Validate checks source sequence ordering. A stale sequence on a known
// duplicate is fine (replay of a processed command); a stale sequence on a
// new command means out-of-order delivery and is rejected, as is a gap.
func (sv *SequenceValidator) Validate(partition string, sourceSequence int64, isDuplicate bool) error {
	expected := sv.expectedNext[partition]

	if sourceSequence < expected {
		if isDuplicate {
			return nil
		}
		return fmt.Errorf("out-of-order command: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	if sourceSequence > expected {
		return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	sv.expectedNext[partition] = expected + 1
	return nil
}

// Expected returns the next expected sequence for a partition.
func (sv *SequenceValidator) Expected(partition string) int64 {
	return sv.expectedNext[partition]
}

// RestorePartition initializes a partition's expected sequence (recovery).
func (sv *SequenceValidator) RestorePartition(partition string, seq int64) {
	sv.expectedNext[partition] = seq
}

// Partitions returns a copy of all partition states (snapshot support).
func (sv *SequenceValidator) Partitions() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNext))
	for k, v := range sv.expectedNext {
		out[k] = v
	}
	return out
}
