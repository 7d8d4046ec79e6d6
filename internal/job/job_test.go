package job

import "testing"

// sumJob is a minimal Job used to exercise Registry and the protocol
// shape without pulling in ngk: each task i just squares x[i], and
// ApplyResults sums whatever results it is handed.
type sumJob struct {
	x   []float64
	sum float64
}

func (j *sumJob) TaskCount() int { return len(j.x) }

func (j *sumJob) UpdateReal(payload []byte) error {
	if len(payload) != len(j.x)*8 {
		return errBadPayload
	}
	for i := range j.x {
		j.x[i] = bytesToFloat64(payload[i*8 : i*8+8])
	}
	return nil
}

func (j *sumJob) EvaluateTask(task int) ([]byte, error) {
	v := j.x[task] * j.x[task]
	return float64ToBytes(v), nil
}

func (j *sumJob) ApplyResults(results [][]byte) error {
	j.sum = 0
	for _, r := range results {
		j.sum += bytesToFloat64(r)
	}
	return nil
}

func (j *sumJob) ClearResults() { j.sum = 0 }

func TestRegistryRegisterLookupDeregister(t *testing.T) {
	r := NewRegistry()
	j := &sumJob{x: []float64{1, 2, 3}}

	id := r.Register(j)
	if id == 0 {
		t.Fatal("Register returned zero ID")
	}

	got, ok := r.Lookup(id)
	if !ok || got != j {
		t.Fatalf("Lookup(%d) = (%v, %v), want (job, true)", id, got, ok)
	}

	r.Deregister(id)
	if _, ok := r.Lookup(id); ok {
		t.Fatalf("Lookup(%d) after Deregister still found", id)
	}
}

func TestRegistryIDsAreMonotonicAndDistinct(t *testing.T) {
	r := NewRegistry()
	seen := make(map[ID]bool)
	for i := 0; i < 10; i++ {
		id := r.Register(&sumJob{x: []float64{float64(i)}})
		if seen[id] {
			t.Fatalf("duplicate ID %d", id)
		}
		seen[id] = true
	}
}

func TestJobProtocolRoundTrip(t *testing.T) {
	j := &sumJob{x: []float64{2, 3}}

	results := make([][]byte, j.TaskCount())
	for task := 0; task < j.TaskCount(); task++ {
		result, err := j.EvaluateTask(task)
		if err != nil {
			t.Fatalf("EvaluateTask(%d): %v", task, err)
		}
		results[task] = result
	}

	master := &sumJob{x: j.x}
	if err := master.ApplyResults(results); err != nil {
		t.Fatalf("ApplyResults: %v", err)
	}
	if master.sum != 13 {
		t.Errorf("master.sum = %v, want 13 (4+9)", master.sum)
	}

	master.ClearResults()
	if master.sum != 0 {
		t.Errorf("sum after ClearResults = %v, want 0", master.sum)
	}
}
