package model

import (
	"fmt"
	"strconv"
)

// Skill is the engine's 5-valued difficulty setting, zero-based.
type Skill int

const (
	SkillBaby Skill = iota
	SkillEasy
	SkillNormal
	SkillHard
	SkillNightmare
)

// DefaultSkill is used when a save carries no usable skill value.
const DefaultSkill = SkillNormal

var skillNames = [...]string{"baby", "easy", "normal", "hard", "nightmare"}

// ClampSkill maps out-of-range values to DefaultSkill.
func ClampSkill(v int) Skill {
	if v < int(SkillBaby) || v > int(SkillNightmare) {
		return DefaultSkill
	}
	return Skill(v)
}

// Valid reports whether s is within 0..4.
func (s Skill) Valid() bool {
	return s >= SkillBaby && s <= SkillNightmare
}

func (s Skill) String() string {
	if !s.Valid() {
		return fmt.Sprintf("skill(%d)", int(s))
	}
	return skillNames[s]
}

// ParseSkill accepts a skill name or a 1-based number as shown by the engine menu.
func ParseSkill(s string) (Skill, error) {
	for i, name := range skillNames {
		if s == name {
			return Skill(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(skillNames) {
		return Skill(n - 1), nil
	}
	return DefaultSkill, fmt.Errorf("unknown skill %q", s)
}
