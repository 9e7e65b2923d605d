package npp

import "fmt"

// TabFile is one map file of a tab and the number of maps it holds.
type TabFile struct {
	Name  string
	Count int
}

// Tab describes one tab of the N++ level browser.
type Tab struct {
	Key  string
	Code string
	Name string
	Mode Mode
	// Tab is the position within the mode, Index the position used for navigation.
	Tab   int
	Index int
	Start int
	Size  int
	Files []TabFile
	// X tabs have a sixth row of episodes that does not belong to any story.
	X      bool
	Secret bool
}

// Tabs is the tab table in ID order.
var Tabs = []Tab{
	{Key: "SI", Code: "SI", Name: "Intro", Mode: Solo, Tab: 0, Index: 0, Start: 0, Size: 125, Files: []TabFile{{"SI", 125}}},
	{Key: "S", Code: "S", Name: "Solo", Mode: Solo, Tab: 1, Index: 1, Start: 600, Size: 600, Files: []TabFile{{"S", 600}}, X: true},
	{Key: "SL", Code: "SL", Name: "Legacy", Mode: Solo, Tab: 2, Index: 3, Start: 1200, Size: 600, Files: []TabFile{{"SL", 600}}, X: true},
	{Key: "SS", Code: "?", Name: "Secret", Mode: Solo, Tab: 3, Index: 4, Start: 1800, Size: 120, Files: []TabFile{{"SS", 120}}, X: true, Secret: true},
	{Key: "SU", Code: "SU", Name: "Ultimate", Mode: Solo, Tab: 4, Index: 2, Start: 2400, Size: 600, Files: []TabFile{{"S2", 600}}, X: true},
	{Key: "SS2", Code: "!", Name: "Ultimate Secret", Mode: Solo, Tab: 5, Index: 5, Start: 3000, Size: 120, Files: []TabFile{{"SS2", 120}}, X: true, Secret: true},
	{Key: "CI", Code: "CI", Name: "Coop Intro", Mode: Coop, Tab: 0, Index: 0, Start: 4200, Size: 50, Files: []TabFile{{"CI", 50}}},
	{Key: "C", Code: "C", Name: "Coop", Mode: Coop, Tab: 1, Index: 1, Start: 4800, Size: 600, Files: []TabFile{{"C", 300}, {"C2", 300}}, X: true},
	{Key: "CL", Code: "CL", Name: "Coop Legacy", Mode: Coop, Tab: 2, Index: 2, Start: 5400, Size: 330, Files: []TabFile{{"CL", 120}, {"CL2", 210}}, X: true},
	{Key: "RI", Code: "RI", Name: "Race Intro", Mode: Race, Tab: 0, Index: 0, Start: 8400, Size: 25, Files: []TabFile{{"RI", 25}}},
	{Key: "R", Code: "R", Name: "Race", Mode: Race, Tab: 1, Index: 1, Start: 9000, Size: 600, Files: []TabFile{{"R", 300}, {"R2", 300}}, X: true},
	{Key: "RL", Code: "RL", Name: "Race Legacy", Mode: Race, Tab: 2, Index: 2, Start: 9600, Size: 570, Files: []TabFile{{"RL", 120}, {"RL2", 450}}, X: true},
}

// Enum is the persisted tab value.
func (t Tab) Enum() int { return int(t.Mode)*7 + t.Tab }

// Contains reports whether a level inner ID lies in this tab.
func (t Tab) Contains(levelID int) bool {
	return levelID >= t.Start && levelID < t.Start+t.Size
}

// FileOffset returns the offset of a file's first map within the tab.
func (t Tab) FileOffset(file string) (int, bool) {
	offset := 0
	for _, f := range t.Files {
		if f.Name == file {
			return offset, true
		}
		offset += f.Count
	}
	return 0, false
}

// FileCount returns the number of maps in the named file.
func (t Tab) FileCount(file string) int {
	for _, f := range t.Files {
		if f.Name == file {
			return f.Count
		}
	}
	return 0
}

// TabForFile finds the tab owning a map file (name without extension).
func TabForFile(file string) (Tab, bool) {
	for _, t := range Tabs {
		if _, ok := t.FileOffset(file); ok {
			return t, true
		}
	}
	return Tab{}, false
}

// TabForLevel finds the tab containing a level inner ID.
func TabForLevel(levelID int) (Tab, bool) {
	for _, t := range Tabs {
		if t.Contains(levelID) {
			return t, true
		}
	}
	return Tab{}, false
}

// TabForEnum resolves a persisted tab value.
func TabForEnum(v int) (Tab, bool) {
	for _, t := range Tabs {
		if t.Enum() == v {
			return t, true
		}
	}
	return Tab{}, false
}

// Successor returns the inner ID of the next level in the same tab. The last
// level of a tab has no successor.
func Successor(levelID int) (int, bool) {
	t, ok := TabForLevel(levelID)
	if !ok || levelID+1 >= t.Start+t.Size {
		return 0, false
	}
	return levelID + 1, true
}

// ComputeName returns the in-game name of a highscoreable from its inner ID,
// without the mappack prefix.
func ComputeName(id int, kind Kind) (string, bool) {
	if !kind.Valid() {
		return "", false
	}
	f := kind.Size()
	t, ok := TabForLevel(id * f)
	if !ok {
		return "", false
	}
	if kind == Story {
		return fmt.Sprintf("%s-%02d", t.Code, id-t.Start/25), true
	}

	tabOffset := id - t.Start/f
	fileOffset := tabOffset
	fileCount := t.Files[0].Count / f
	sum := 0
	for _, file := range t.Files {
		if sum <= tabOffset {
			fileOffset = tabOffset - sum
			fileCount = file.Count / f
		}
		sum += file.Count / f
	}

	// Secret level tabs are numbered like episodes.
	episodic := kind == Episode
	if kind == Level && t.Secret {
		episodic = true
		f = 5
	}

	rows := 5
	if t.X {
		rows = 6
	}
	fileEps := fileCount * f / 5
	fileCols := fileEps / rows
	episodeOffset := fileOffset * f / 5

	var letter string
	var columnOffset int
	if t.X && episodeOffset >= 5*fileEps/6 {
		letter = "X"
		columnOffset = episodeOffset % fileCols
	} else {
		letter = string(rune('A' + episodeOffset%5))
		columnOffset = episodeOffset / 5
	}

	prevCount := tabOffset - fileOffset
	prevEps := prevCount * f / 5
	prevCols := prevEps / rows
	col := columnOffset + prevCols
	lvl := tabOffset % 5

	if episodic {
		return fmt.Sprintf("%s-%s-%02d", t.Code, letter, col), true
	}
	return fmt.Sprintf("%s-%s-%02d-%02d", t.Code, letter, col, lvl), true
}
