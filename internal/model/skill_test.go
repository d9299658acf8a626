package model

import "testing"

func TestClampSkill(t *testing.T) {
	tests := []struct {
		in   int
		want Skill
	}{
		{in: 0, want: SkillBaby},
		{in: 4, want: SkillNightmare},
		{in: -1, want: SkillNormal},
		{in: 5, want: SkillNormal},
		{in: 99, want: SkillNormal},
	}

	for _, tt := range tests {
		if got := ClampSkill(tt.in); got != tt.want {
			t.Errorf("ClampSkill(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSkill(t *testing.T) {
	tests := []struct {
		in      string
		want    Skill
		wantErr bool
	}{
		{in: "hard", want: SkillHard},
		{in: "4", want: SkillHard},
		{in: "1", want: SkillBaby},
		{in: "6", want: SkillNormal, wantErr: true},
		{in: "ultra", want: SkillNormal, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSkill(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSkill(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSkill(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
