package metrics

// ContainedFraction is the share of samples in which the flock was contained.
type ContainedFraction struct {
	name      string
	contained int
	samples   int
}

func NewContainedFraction() *ContainedFraction {
	return &ContainedFraction{name: "contained_fraction"}
}

func (c *ContainedFraction) Name() string { return c.name }

func (c *ContainedFraction) Observe(s Sample) {
	c.samples++
	if s.Contained {
		c.contained++
	}
}

func (c *ContainedFraction) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.contained) / float64(c.samples)
}

func (c *ContainedFraction) Reset() {
	c.contained = 0
	c.samples = 0
}

// TimeToContainment is the time of the first contained sample, or -1 if the
// flock was never contained.
type TimeToContainment struct {
	name  string
	first float64
	seen  bool
}

func NewTimeToContainment() *TimeToContainment {
	return &TimeToContainment{name: "time_to_containment", first: -1}
}

func (t *TimeToContainment) Name() string { return t.name }

func (t *TimeToContainment) Observe(s Sample) {
	if s.Contained && !t.seen {
		t.first = s.Time
		t.seen = true
	}
}

func (t *TimeToContainment) Value() float64 { return t.first }

func (t *TimeToContainment) Reset() {
	t.first = -1
	t.seen = false
}
