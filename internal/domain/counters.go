package domain

// Counters aggregates net classifications for a list-level report.
type Counters struct {
	Created   int `json:"created"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Moved     int `json:"moved"`
	Unchanged int `json:"unchanged"`
}

// Record counts one classified entity.
func (c *Counters) Record(action Action) {
	switch action {
	case ActionCreated:
		c.Created++
	case ActionModified:
		c.Modified++
	case ActionDeleted:
		c.Deleted++
	case ActionMoved:
		c.Moved++
	case ActionUnchanged:
		c.Unchanged++
	}
}

// Add merges other into a copy of c.
func (c Counters) Add(other Counters) Counters {
	return Counters{
		Created:   c.Created + other.Created,
		Modified:  c.Modified + other.Modified,
		Deleted:   c.Deleted + other.Deleted,
		Moved:     c.Moved + other.Moved,
		Unchanged: c.Unchanged + other.Unchanged,
	}
}

// Net is created minus deleted. Unlike the raw counts, it is additive across adjacent windows.
func (c Counters) Net() int {
	return c.Created - c.Deleted
}

// Total is the number of entities counted.
func (c Counters) Total() int {
	return c.Created + c.Modified + c.Deleted + c.Moved + c.Unchanged
}
