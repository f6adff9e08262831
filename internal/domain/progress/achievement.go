package progress

import "slices"

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS (Достижения)
// ══════════════════════════════════════════════════════════════════════════════

// Action - действие пользователя, во время которого идёт проверка.
// Нужна для правил, привязанных ко времени конкретного действия.
type Action string

const (
	// ActionNone - проверка без привязки к действию (загрузка, начисление XP).
	ActionNone Action = ""
	// ActionLessonStart - начало урока.
	ActionLessonStart Action = "lesson_start"
	// ActionLessonComplete - завершение урока.
	ActionLessonComplete Action = "lesson_complete"
)

// Идентификаторы достижений. Значения совпадают с сохранёнными в записи.
const (
	AchievementFirstLesson   = "first_lesson"
	AchievementFiveLessons   = "5_lessons"
	AchievementTenLessons    = "10_lessons"
	AchievementAllLessons    = "all_lessons"
	AchievementWeekStreak    = "week_streak"
	AchievementMonthStreak   = "month_streak"
	AchievementPerfectionist = "perfectionist"
	AchievementSpeedLearner  = "speed_learner"
	AchievementLevel5        = "level_5"
	AchievementLevel10       = "level_10"
	AchievementLevel20       = "level_20"
	AchievementEarlyBird     = "early_bird"
	AchievementNightOwl      = "night_owl"
	AchievementSharkFriend   = "shark_friend"
)

const (
	// EarlyBirdBeforeHour - урок, начатый раньше этого часа, даёт early_bird.
	EarlyBirdBeforeHour = 8
	// NightOwlFromHour - урок, завершённый начиная с этого часа, даёт night_owl.
	NightOwlFromHour = 22
	// SharkFriendClicks - сколько кликов по талисману нужно для shark_friend.
	SharkFriendClicks = 10
)

// EvalContext - входные данные проверки, которых нет в записи.
// Час передаётся явно, правила не читают часы сами.
type EvalContext struct {
	TotalLessons          int
	CompletedInCurriculum int
	Hour                  int
	Action                Action
	MascotClicks          int
}

// Predicate решает, выполнено ли условие достижения.
type Predicate func(r Record, ctx EvalContext) bool

// Rule описывает одно достижение.
type Rule struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	RewardXP    int       `json:"rewardXP"`
	Predicate   Predicate `json:"-"`
}

// Catalog - упорядоченная декларативная таблица правил.
type Catalog struct {
	rules []Rule
	index map[string]int
}

// NewCatalog создаёт каталог из правил. Порядок правил задаёт порядок выдачи.
func NewCatalog(rules ...Rule) *Catalog {
	c := &Catalog{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for _, rule := range rules {
		if _, dup := c.index[rule.ID]; dup || rule.Predicate == nil {
			continue
		}
		c.index[rule.ID] = len(c.rules)
		c.rules = append(c.rules, rule)
	}
	return c
}

// Rules возвращает копию всех правил.
func (c *Catalog) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Get возвращает правило по идентификатору.
func (c *Catalog) Get(id string) (Rule, bool) {
	i, ok := c.index[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Len возвращает число правил.
func (c *Catalog) Len() int {
	return len(c.rules)
}

// Evaluate возвращает правила, условие которых выполнено и которые ещё не открыты.
// Не изменяет запись.
func (c *Catalog) Evaluate(r Record, ctx EvalContext) []Rule {
	var matched []Rule
	for _, rule := range c.rules {
		if r.HasAchievement(rule.ID) {
			continue
		}
		if rule.Predicate(r, ctx) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// ──────────────────────────────────────────────────────────────────────────────
// Predicates
// ──────────────────────────────────────────────────────────────────────────────

func lessonsAtLeast(n int) Predicate {
	return func(r Record, _ EvalContext) bool {
		return r.Stats.TotalLessonsCompleted >= n
	}
}

func streakAtLeast(n int) Predicate {
	return func(r Record, _ EvalContext) bool {
		return r.Streak >= n
	}
}

func levelAtLeast(n int) Predicate {
	return func(r Record, _ EvalContext) bool {
		return r.Level >= n
	}
}

func allLessons(_ Record, ctx EvalContext) bool {
	return ctx.TotalLessons > 0 && ctx.CompletedInCurriculum >= ctx.TotalLessons
}

func perfectScoresAtLeast(n int) Predicate {
	return func(r Record, _ EvalContext) bool {
		return r.Stats.PerfectScores >= n
	}
}

func lessonsTodayAtLeast(n int) Predicate {
	return func(r Record, _ EvalContext) bool {
		return r.DailyGoal.Completed >= n
	}
}

func earlyBird(_ Record, ctx EvalContext) bool {
	return ctx.Action == ActionLessonStart && ctx.Hour < EarlyBirdBeforeHour
}

func nightOwl(_ Record, ctx EvalContext) bool {
	return ctx.Action == ActionLessonComplete && ctx.Hour >= NightOwlFromHour
}

func sharkFriend(_ Record, ctx EvalContext) bool {
	return ctx.MascotClicks >= SharkFriendClicks
}

// DefaultCatalog возвращает каталог достижений академии.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Rule{AchievementFirstLesson, "Первые шаги", "Завершите свой первый урок", "🎯", 0, lessonsAtLeast(1)},
		Rule{AchievementFiveLessons, "Новичок", "Завершите 5 уроков", "📚", 50, lessonsAtLeast(5)},
		Rule{AchievementTenLessons, "Ученик", "Завершите 10 уроков", "🎓", 100, lessonsAtLeast(10)},
		Rule{AchievementAllLessons, "Мастер PyBricks", "Завершите все уроки!", "👑", 500, allLessons},
		Rule{AchievementWeekStreak, "Недельная серия", "Занимайтесь 7 дней подряд", "🔥", 100, streakAtLeast(7)},
		Rule{AchievementMonthStreak, "Месячная серия", "Занимайтесь 30 дней подряд", "💪", 300, streakAtLeast(30)},
		Rule{AchievementPerfectionist, "Перфекционист", "Получите 100% в 5 уроках", "⭐", 150, perfectScoresAtLeast(5)},
		Rule{AchievementSpeedLearner, "Быстрый ученик", "Завершите 3 урока за один день", "⚡", 75, lessonsTodayAtLeast(3)},
		Rule{AchievementLevel5, "Уровень 5", "Достигните 5-го уровня", "🏅", 50, levelAtLeast(5)},
		Rule{AchievementLevel10, "Уровень 10", "Достигните 10-го уровня", "🥇", 100, levelAtLeast(10)},
		Rule{AchievementLevel20, "Уровень 20", "Достигните 20-го уровня", "💎", 200, levelAtLeast(20)},
		Rule{AchievementSharkFriend, "Друг акулы", "Кликните на акулу 10 раз", "🦈", 25, sharkFriend},
		Rule{AchievementEarlyBird, "Ранняя пташка", "Начните урок до 8 утра", "🌅", 30, earlyBird},
		Rule{AchievementNightOwl, "Ночная сова", "Завершите урок после 10 вечера", "🦉", 30, nightOwl},
	)
}
