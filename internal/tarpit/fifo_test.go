package tarpit

import "testing"

func TestFIFOAppendPopOrder(t *testing.T) {
	q := NewFIFO()
	a := &Client{fd: 1, SendNext: 10}
	b := &Client{fd: 2, SendNext: 20}
	c := &Client{fd: 3, SendNext: 30}

	q.Append(a)
	q.Append(b)
	q.Append(c)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	if q.Head() != a {
		t.Fatalf("Head() = %v, want a", q.Head())
	}

	for i, want := range []*Client{a, b, c} {
		got := q.Pop()
		if got != want {
			t.Fatalf("Pop() #%d = fd %d, want fd %d", i, got.FD(), want.FD())
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after draining = %d, want 0", q.Len())
	}
	if q.Head() != nil {
		t.Fatalf("Head() after draining = %v, want nil", q.Head())
	}
}

func TestFIFOReappendAfterPop(t *testing.T) {
	q := NewFIFO()
	a := &Client{fd: 1}
	q.Append(a)
	popped := q.Pop()
	q.Append(popped)
	if q.Len() != 1 || q.Head() != popped {
		t.Fatalf("re-append after pop broke queue state: len=%d head=%v", q.Len(), q.Head())
	}
}

func TestFIFOEachVisitsAllWithoutRemoving(t *testing.T) {
	q := NewFIFO()
	q.Append(&Client{fd: 1})
	q.Append(&Client{fd: 2})

	var seen []int
	q.Each(func(c *Client) { seen = append(seen, c.FD()) })

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("Each visited %v, want [1 2]", seen)
	}
	if q.Len() != 2 {
		t.Fatalf("Each mutated queue: len=%d, want 2", q.Len())
	}
}

func TestFIFODrainCallsFnForEveryClientThenEmpties(t *testing.T) {
	q := NewFIFO()
	q.Append(&Client{fd: 1})
	q.Append(&Client{fd: 2})
	q.Append(&Client{fd: 3})

	var drained []int
	q.Drain(func(c *Client) { drained = append(drained, c.FD()) })

	if len(drained) != 3 {
		t.Fatalf("Drain visited %d clients, want 3", len(drained))
	}
	if q.Len() != 0 || q.Head() != nil {
		t.Fatalf("queue not empty after Drain: len=%d head=%v", q.Len(), q.Head())
	}
}
