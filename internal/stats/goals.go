package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
)

// DefaultTargets are the weekly goals applied when no goals file is configured.
var DefaultTargets = Targets{Workouts: 5, Duration: 300, Calories: 2000}

// Targets are weekly goal thresholds.
type Targets struct {
	Workouts int `toml:"workouts" json:"workouts"`
	Duration int `toml:"duration" json:"duration"`
	Calories int `toml:"calories" json:"calories"`
}

// Validate rejects non-positive targets.
func (t Targets) Validate() error {
	var errs []error
	if t.Workouts <= 0 {
		errs = append(errs, fmt.Errorf("workouts target must be > 0, got %d", t.Workouts))
	}
	if t.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration target must be > 0, got %d", t.Duration))
	}
	if t.Calories <= 0 {
		errs = append(errs, fmt.Errorf("calories target must be > 0, got %d", t.Calories))
	}
	return errors.Join(errs...)
}

// LoadTargets reads a TOML goals file. Keys absent from the file keep their
// default values.
//
//	[weekly]
//	workouts = 4
//	duration = 240
//	calories = 1800
func LoadTargets(path string) (Targets, error) {
	doc := struct {
		Weekly Targets `toml:"weekly"`
	}{Weekly: DefaultTargets}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Targets{}, fmt.Errorf("decode goals file %s: %w", path, err)
	}
	if err := doc.Weekly.Validate(); err != nil {
		return Targets{}, fmt.Errorf("goals file %s: %w", path, err)
	}
	return doc.Weekly, nil
}

// Level buckets a progress percentage for display.
type Level string

const (
	LevelAchieved   Level = "achieved"
	LevelClose      Level = "close"
	LevelInProgress Level = "in_progress"
)

// Progress reports how far a single metric is from its target.
type Progress struct {
	Current    int     `json:"current"`
	Target     int     `json:"target"`
	Percentage float64 `json:"percentage"`
	Rounded    int     `json:"rounded"`
	Achieved   bool    `json:"achieved"`
	Level      Level   `json:"level"`
}

// Goals holds weekly progress for every tracked metric.
type Goals struct {
	Workouts Progress `json:"workouts"`
	Duration Progress `json:"duration"`
	Calories Progress `json:"calories"`
}

// Evaluate computes progress of current against target. The percentage is
// clamped at 100. A non-positive target counts as met.
func Evaluate(current, target int) Progress {
	p := Progress{Current: current, Target: target}
	if target <= 0 {
		p.Percentage = 100
	} else {
		p.Percentage = math.Min(float64(current)/float64(target)*100, 100)
	}
	p.Achieved = target <= 0 || current >= target
	p.Rounded = int(math.Round(p.Percentage))

	switch {
	case p.Percentage >= 100:
		p.Level = LevelAchieved
	case p.Percentage >= 75:
		p.Level = LevelClose
	default:
		p.Level = LevelInProgress
	}
	return p
}

// GoalEvaluator compares weekly totals against configured targets.
type GoalEvaluator struct {
	targets Targets
}

// NewGoalEvaluator constructs a GoalEvaluator.
func NewGoalEvaluator(targets Targets) *GoalEvaluator {
	return &GoalEvaluator{targets: targets}
}

// Targets returns the configured thresholds.
func (e *GoalEvaluator) Targets() Targets {
	return e.targets
}

// Evaluate reports progress for each weekly metric.
func (e *GoalEvaluator) Evaluate(weekly Totals) Goals {
	return Goals{
		Workouts: Evaluate(weekly.Count, e.targets.Workouts),
		Duration: Evaluate(weekly.TotalDuration, e.targets.Duration),
		Calories: Evaluate(weekly.TotalCalories, e.targets.Calories),
	}
}
