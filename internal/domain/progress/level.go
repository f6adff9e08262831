package progress

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL / XP CALCULATOR
// Формула: level = floor(sqrt(xp / 100)) + 1, порог уровня L = (L-1)^2 * 100.
// Считается в целых числах, чтобы границы уровней совпадали точно.
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevelUnit - масштаб квадратичной кривой уровней.
const XPPerLevelUnit = 100

// MaxXP - верхняя граница XP. Начисление сверх неё отклоняется (AddXP, урок)
// или обрезается до границы (награды за достижения и ежедневную цель).
// Уровень на границе - 3163, пороги уровней при этом не переполняют int32.
const MaxXP = 1_000_000_000

// LevelFromXP вычисляет уровень по XP. Отрицательный XP даёт уровень 1.
func LevelFromXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return isqrt(xp/XPPerLevelUnit) + 1
}

// XPThresholdForLevel возвращает минимальный XP для уровня.
// Обратна LevelFromXP: LevelFromXP(XPThresholdForLevel(L)) == L.
func XPThresholdForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return n * n * XPPerLevelUnit
}

// ProgressFractionWithinLevel возвращает долю пройденного пути до следующего
// уровня в диапазоне [0, 1]. Уровень не передаётся: он всегда равен LevelFromXP(xp).
func ProgressFractionWithinLevel(xp int) float64 {
	level := LevelFromXP(xp)
	low := XPThresholdForLevel(level)
	high := XPThresholdForLevel(level + 1)
	fraction := float64(xp-low) / float64(high-low)
	return math.Max(0, math.Min(1, fraction))
}

// XPToNextLevel возвращает, сколько XP не хватает до следующего уровня.
func XPToNextLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return XPThresholdForLevel(LevelFromXP(xp)+1) - xp
}

// isqrt возвращает floor(sqrt(n)) для n >= 0.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// roundDiv возвращает round(n / d) с округлением половины вверх, n >= 0, d > 0.
func roundDiv(n, d int) int {
	return (2*n + d) / (2 * d)
}

// LessonXP начисляет долю награды урока пропорционально результату.
func LessonXP(reward, scorePercent int) int {
	if reward <= 0 || scorePercent <= 0 {
		return 0
	}
	return roundDiv(reward*scorePercent, 100)
}
