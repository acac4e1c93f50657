package rank

// Title is a named band of levels
type Title struct {
	MinLevel int
	Name     string
	Emoji    string
}

// titles must stay sorted by MinLevel
var titles = []Title{
	{MinLevel: 1, Name: "Newbie", Emoji: "🐣"},
	{MinLevel: 3, Name: "Rookie", Emoji: "🌱"},
	{MinLevel: 6, Name: "Apprentice", Emoji: "🗡️"},
	{MinLevel: 10, Name: "Adept", Emoji: "🔮"},
	{MinLevel: 15, Name: "Veteran", Emoji: "🛡️"},
	{MinLevel: 22, Name: "Elite", Emoji: "💎"},
	{MinLevel: 30, Name: "Master", Emoji: "👑"},
	{MinLevel: 40, Name: "Grandmaster", Emoji: "🏆"},
	{MinLevel: 55, Name: "Legend", Emoji: "🐉"},
}

// Rank is the computed standing of an XP total
type Rank struct {
	XP    int
	Level int
	Title Title
	// LevelXP is the XP at which the current level started
	LevelXP int
	// NextLevelXP is the XP needed to reach the next level
	NextLevelXP int
	// Next is the next title, equal to Title at the top band
	Next Title
	// NextTitleXP is the XP needed to reach Next
	NextTitleXP int
}

// Threshold returns the XP needed to reach level. Level 1 needs nothing.
func Threshold(level int) int {
	if level <= 1 {
		return 0
	}
	return 5*(level-1)*(level-1) + 50
}

// LevelFor returns the level reached with xp
func LevelFor(xp int) int {
	level := 1
	for xp >= Threshold(level+1) {
		level++
	}
	return level
}

// For computes the rank of an XP total
func For(xp int) Rank {
	if xp < 0 {
		xp = 0
	}
	level := LevelFor(xp)

	idx := 0
	for i, t := range titles {
		if level >= t.MinLevel {
			idx = i
		}
	}

	r := Rank{
		XP:          xp,
		Level:       level,
		Title:       titles[idx],
		LevelXP:     Threshold(level),
		NextLevelXP: Threshold(level + 1),
		Next:        titles[idx],
		NextTitleXP: Threshold(level + 1),
	}
	if idx+1 < len(titles) {
		r.Next = titles[idx+1]
		r.NextTitleXP = Threshold(r.Next.MinLevel)
	}
	return r
}

// Progress returns how far xp is between the current and the next level, in [0,1]
func (r Rank) Progress() float64 {
	span := r.NextLevelXP - r.LevelXP
	if span <= 0 {
		return 1
	}
	return float64(r.XP-r.LevelXP) / float64(span)
}
