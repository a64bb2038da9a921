// Package testkit generates synthetic disease-exposure studies for tests
// and demos: individuals moving on a plane accumulate exposure from fixed
// contamination sources and convert to cases past a threshold.
package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

const (
	caseExposureThreshold = 4000
	startRadius           = 200
	minMoveDist           = 15
	maxMoveDist           = 100
)

// ExposureSource is a fixed point source of contamination. Linear sources
// decay with distance; constant sources apply full strength within their
// radius.
type ExposureSource struct {
	Strength float64
	Radius   float64
	X, Y     float64
	Linear   bool
}

// DefaultSources returns the simulation's three standard sources.
func DefaultSources() []ExposureSource {
	return []ExposureSource{
		{Strength: 75, Radius: 75, X: 90, Y: 90, Linear: true},
		{Strength: 20, Radius: 120, X: -75, Y: -75},
		{Strength: 40, Radius: 40, X: 130, Y: -120},
	}
}

// SimConfig parameterizes a simulation run.
type SimConfig struct {
	Individuals int
	Moves       int
	LatencyDays int
	Seed        int64
}

// DefaultSimConfig mirrors the historical defaults: 500 individuals, 3
// moves each, 73 days of latency.
func DefaultSimConfig(seed int64) SimConfig {
	return SimConfig{Individuals: 500, Moves: 3, LatencyDays: 73, Seed: seed}
}

// Simulation is a generated study plus its ground truth.
type Simulation struct {
	Study    *study.Study
	Cases    int
	Controls int
}

type simPerson struct {
	id        string
	locations []study.Point
	dates     []core.Date

	exposure  float64
	isCase    bool
	diagnosis *core.Date
	weight    float64
}

// Simulate runs the exposure simulation and assembles a validated study,
// including the four standard focus locations. The run is fully determined
// by the seed.
func Simulate(cfg SimConfig) (*Simulation, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	start := core.NewDate(2015, 1, 1)
	days := cfg.LatencyDays * 5
	exposureDuration := cfg.LatencyDays * 2
	sources := DefaultSources()

	people := make([]*simPerson, cfg.Individuals)
	moveDays := make([]map[int]bool, cfg.Individuals)
	for i := range people {
		theta := rng.Float64() * 2 * math.Pi
		radius := float64(rng.Intn(startRadius + 1))
		people[i] = &simPerson{
			id:        alphaLabel(i),
			locations: []study.Point{{X: math.Cos(theta) * radius, Y: math.Sin(theta) * radius}},
			dates:     []core.Date{start},
			weight:    rng.Float64(),
		}
		moves := make(map[int]bool, cfg.Moves)
		for len(moves) < cfg.Moves && len(moves) < days {
			moves[rng.Intn(days)] = true
		}
		moveDays[i] = moves
	}

	for day := 1; day < days; day++ {
		current := start.AddDays(day)
		for i, p := range people {
			if moveDays[i][day] {
				theta := rng.Float64() * 2 * math.Pi
				dist := float64(minMoveDist + rng.Intn(maxMoveDist-minMoveDist+1))
				last := p.locations[len(p.locations)-1]
				p.locations = append(p.locations, study.Point{
					X: last.X + math.Cos(theta)*dist,
					Y: last.Y + math.Sin(theta)*dist,
				})
				p.dates = append(p.dates, current)
			}
			loc := p.locations[len(p.locations)-1]
			for _, src := range sources {
				d := math.Hypot(loc.X-src.X, loc.Y-src.Y)
				var exposure float64
				if src.Linear {
					if d <= src.Radius {
						exposure = src.Strength - d
					}
				} else if d <= src.Radius {
					exposure = src.Strength
				}
				if exposure > 0 {
					p.accumulate(exposure, current, cfg.LatencyDays)
				}
			}
		}
	}

	var cases []*simPerson
	for _, p := range people {
		if p.isCase {
			cases = append(cases, p)
		}
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("simulation produced no cases; raise the duration or source strength")
	}

	// Controls borrow a random case's dates so exposure windows are defined
	// for the whole population.
	for _, p := range people {
		if !p.isCase {
			match := cases[rng.Intn(len(cases))]
			p.diagnosis = match.diagnosis
		}
	}

	end := start.AddDays(days)
	individuals := make([]*study.Individual, len(people))
	for i, p := range people {
		w := p.weight
		dod := *p.diagnosis
		individuals[i] = &study.Individual{
			ID: core.IndividualID(p.id),
			Label: study.Label{
				IsCase:        p.isCase,
				Weight:        &w,
				DiagnosisDate: &dod,
				LatencyDays:   cfg.LatencyDays,
				ExposureDays:  exposureDuration,
			},
			Intervals: p.intervals(end),
		}
	}
	focuses := []*study.FocusLocation{
		focusAt("Large Constant", start, end, -75, -75),
		focusAt("Medium Linear", start, end, 90, 90),
		focusAt("Small Constant", start, end, 130, -120),
		focusAt("Away From Sources", start, end, -150, 150),
	}

	s, err := study.NewStudy(individuals, focuses)
	if err != nil {
		return nil, err
	}
	return &Simulation{Study: s, Cases: len(cases), Controls: len(people) - len(cases)}, nil
}

func (p *simPerson) accumulate(amount float64, date core.Date, latency int) {
	p.exposure += amount
	if p.exposure >= caseExposureThreshold && !p.isCase {
		p.isCase = true
		diagnosis := date.AddDays(latency)
		p.diagnosis = &diagnosis
	}
}

// intervals converts the move log into a residence history; each location
// is held until the next move and the last one until the study end.
func (p *simPerson) intervals(studyEnd core.Date) []study.ResidenceInterval {
	out := make([]study.ResidenceInterval, len(p.locations))
	for i, loc := range p.locations {
		end := studyEnd
		if i+1 < len(p.dates) {
			end = p.dates[i+1]
		}
		out[i] = study.ResidenceInterval{Start: p.dates[i], End: end, Location: loc}
	}
	return out
}

func focusAt(id string, start, end core.Date, x, y float64) *study.FocusLocation {
	return &study.FocusLocation{
		ID:        core.FocusID(id),
		Intervals: []study.ResidenceInterval{{Start: start, End: end, Location: study.Point{X: x, Y: y}}},
	}
}

// alphaLabel produces A, B, ..., Z, AA, AB, ... identifiers.
func alphaLabel(n int) string {
	label := ""
	n++
	for n > 0 {
		n--
		label = string(rune('A'+n%26)) + label
		n /= 26
	}
	return label
}
