// Package curriculum содержит статическую программу академии: треки, порядок
// уроков и награды за них. Теория и вопросы уроков сюда не входят.
package curriculum

import (
	"fmt"
	"slices"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACKS
// ══════════════════════════════════════════════════════════════════════════════

// Track - уровень сложности программы.
type Track string

const (
	// TrackBeginner - основы моторов и датчиков.
	TrackBeginner Track = "beginner"
	// TrackIntermediate - регуляторы, навигация, автоматы состояний.
	TrackIntermediate Track = "intermediate"
	// TrackAdvanced - фильтрация, локализация, планирование.
	TrackAdvanced Track = "advanced"
)

// Tracks возвращает треки в порядке прохождения.
func Tracks() []Track {
	return []Track{TrackBeginner, TrackIntermediate, TrackAdvanced}
}

// IsValid проверяет, что трек известен.
func (t Track) IsValid() bool {
	return slices.Contains(Tracks(), t)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSONS
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - метаданные урока.
type Lesson struct {
	ID          string `json:"id"`
	Track       Track  `json:"track"`
	Title       string `json:"title"`
	Description string `json:"description"`
	XPReward    int    `json:"xp"`
}

// Catalog - упорядоченная программа. Порядок уроков задаёт порядок открытия.
type Catalog struct {
	lessons []Lesson
	index   map[string]int
}

// New создаёт каталог. Уроки сортируются по трекам с сохранением порядка внутри трека.
func New(lessons []Lesson) (*Catalog, error) {
	ordered := make([]Lesson, 0, len(lessons))
	for _, track := range Tracks() {
		for _, l := range lessons {
			if l.Track == track {
				ordered = append(ordered, l)
			}
		}
	}
	if len(ordered) != len(lessons) {
		return nil, fmt.Errorf("curriculum: %d lessons have an unknown track", len(lessons)-len(ordered))
	}

	c := &Catalog{lessons: ordered, index: make(map[string]int, len(ordered))}
	for i, l := range ordered {
		if l.ID == "" {
			return nil, fmt.Errorf("curriculum: lesson #%d has empty id", i)
		}
		if l.XPReward < 0 {
			return nil, fmt.Errorf("curriculum: lesson %q has negative reward", l.ID)
		}
		if _, dup := c.index[l.ID]; dup {
			return nil, fmt.Errorf("curriculum: duplicate lesson id %q", l.ID)
		}
		c.index[l.ID] = i
	}
	return c, nil
}

// Default возвращает программу PyShark.
func Default() *Catalog {
	c, err := New(defaultLessons)
	if err != nil {
		panic(err)
	}
	return c
}

// Lessons возвращает все уроки по порядку.
func (c *Catalog) Lessons() []Lesson {
	return slices.Clone(c.lessons)
}

// ByTrack возвращает уроки одного трека.
func (c *Catalog) ByTrack(track Track) []Lesson {
	var out []Lesson
	for _, l := range c.lessons {
		if l.Track == track {
			out = append(out, l)
		}
	}
	return out
}

// Get возвращает урок по идентификатору.
func (c *Catalog) Get(id string) (Lesson, bool) {
	i, ok := c.index[id]
	if !ok {
		return Lesson{}, false
	}
	return c.lessons[i], true
}

// Contains проверяет, есть ли урок в программе.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// TotalLessonCount возвращает число уроков.
func (c *Catalog) TotalLessonCount() int {
	return len(c.lessons)
}

// XPReward возвращает награду за урок.
func (c *Catalog) XPReward(id string) (int, bool) {
	l, ok := c.Get(id)
	return l.XPReward, ok
}

// NextLesson возвращает первый непройденный урок.
func (c *Catalog) NextLesson(completed []string) (string, bool) {
	for _, l := range c.lessons {
		if !slices.Contains(completed, l.ID) {
			return l.ID, true
		}
	}
	return "", false
}

// After возвращает урок, следующий за id, с переходом между треками.
func (c *Catalog) After(id string) (string, bool) {
	i, ok := c.index[id]
	if !ok || i+1 >= len(c.lessons) {
		return "", false
	}
	return c.lessons[i+1].ID, true
}

// Before возвращает урок, предшествующий id.
func (c *Catalog) Before(id string) (string, bool) {
	i, ok := c.index[id]
	if !ok || i == 0 {
		return "", false
	}
	return c.lessons[i-1].ID, true
}

// IsUnlocked проверяет доступность урока: первый урок открыт всегда,
// остальные - после прохождения предыдущего.
func (c *Catalog) IsUnlocked(id string, completed []string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	if i == 0 {
		return true
	}
	return slices.Contains(completed, c.lessons[i-1].ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lesson status
// ──────────────────────────────────────────────────────────────────────────────

// LessonStatus - урок с отметками прохождения и доступности и соседями по порядку.
type LessonStatus struct {
	Lesson
	Completed bool   `json:"completed"`
	Unlocked  bool   `json:"unlocked"`
	Previous  string `json:"previous,omitempty"`
	Next      string `json:"next,omitempty"`
}

// Statuses возвращает уроки трека (всей программы, если track пуст)
// с учётом пройденных уроков.
func (c *Catalog) Statuses(track Track, completed []string) []LessonStatus {
	lessons := c.lessons
	if track != "" {
		lessons = c.ByTrack(track)
	}

	out := make([]LessonStatus, 0, len(lessons))
	for _, l := range lessons {
		st := LessonStatus{
			Lesson:    l,
			Completed: slices.Contains(completed, l.ID),
			Unlocked:  c.IsUnlocked(l.ID, completed),
		}
		st.Previous, _ = c.Before(l.ID)
		st.Next, _ = c.After(l.ID)
		out = append(out, st)
	}
	return out
}

var defaultLessons = []Lesson{
	{"b1", TrackBeginner, "Welcome to PyBricks", "Introduction to robotics programming and PyBricks basics", 50},
	{"b2", TrackBeginner, "Understanding Motors", "Learn how to control robot motors", 75},
	{"b3", TrackBeginner, "Motor Direction Control", "Control motor direction and rotation", 75},
	{"b4", TrackBeginner, "Precise Motor Angles", "Move motors by specific angles", 100},
	{"b5", TrackBeginner, "Multiple Motors", "Control multiple motors simultaneously", 100},
	{"b6", TrackBeginner, "Robot Turning", "Learn to turn your robot", 125},
	{"b7", TrackBeginner, "Introduction to Sensors", "Learn about robot sensors", 100},
	{"b8", TrackBeginner, "Using the Color Sensor", "Detect colors with your robot", 125},
	{"b9", TrackBeginner, "Distance Sensing", "Measure distance with ultrasonic sensor", 125},
	{"b10", TrackBeginner, "Basic Loops", "Repeat actions with loops", 150},
	{"b11", TrackBeginner, "Conditional Logic", "Make decisions with if statements", 150},
	{"b12", TrackBeginner, "Beginner Challenge", "Build a simple obstacle-avoiding robot", 200},

	{"i1", TrackIntermediate, "Advanced Loops", "Master loop techniques", 150},
	{"i2", TrackIntermediate, "Line Following Basics", "Follow a line using color sensor", 175},
	{"i3", TrackIntermediate, "Proportional Control", "Smooth control with proportional steering", 200},
	{"i4", TrackIntermediate, "Robot Functions", "Organize code with functions", 150},
	{"i5", TrackIntermediate, "Timing and Delays", "Master robot timing", 125},
	{"i6", TrackIntermediate, "Wall Following", "Follow walls using distance sensor", 200},
	{"i7", TrackIntermediate, "State Machines Intro", "Learn basic state machine patterns", 200},
	{"i8", TrackIntermediate, "Gyro Sensor Basics", "Use gyro for accurate turning", 175},
	{"i9", TrackIntermediate, "Sensor Fusion", "Combine multiple sensors", 225},
	{"i10", TrackIntermediate, "Speed Ramping", "Smooth acceleration and deceleration", 175},
	{"i11", TrackIntermediate, "Maze Navigation", "Navigate through a simple maze", 250},
	{"i12", TrackIntermediate, "Data Logging", "Record and analyze sensor data", 150},
	{"i13", TrackIntermediate, "PID Controller Basics", "Introduction to PID control", 250},
	{"i14", TrackIntermediate, "Object Detection", "Detect and track objects", 200},
	{"i15", TrackIntermediate, "Intermediate Challenge", "Build an autonomous delivery robot", 300},

	{"a1", TrackAdvanced, "Advanced PID Tuning", "Master PID parameter tuning", 250},
	{"a2", TrackAdvanced, "Path Planning", "Plan optimal paths", 300},
	{"a3", TrackAdvanced, "Multi-Motor Coordination", "Synchronize multiple motors precisely", 275},
	{"a4", TrackAdvanced, "Kalman Filtering", "Filter noisy sensor data", 300},
	{"a5", TrackAdvanced, "Localization", "Track robot position", 325},
	{"a6", TrackAdvanced, "Behavior Trees", "Advanced decision making", 300},
}
