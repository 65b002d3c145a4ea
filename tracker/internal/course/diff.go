package course

// ActivityChange is an activity present in both snapshots whose recorded
// fields differ.
type ActivityChange struct {
	Name string   `json:"name"`
	Old  Activity `json:"old"`
	New  Activity `json:"new"`
}

// Update lists what changed in one course since the previous snapshot.
//
// When NewCourse is set the course was absent before; Sections then carries
// its whole content and the detail lists stay empty.
type Update struct {
	Code               string           `json:"code"`
	NewCourse          bool             `json:"new_course,omitempty"`
	Sections           []Section        `json:"sections,omitempty"`
	NewSections        []Section        `json:"new_sections,omitempty"`
	ModifiedSections   []Section        `json:"modified_sections,omitempty"`
	NewActivities      []Activity       `json:"new_activities,omitempty"`
	ModifiedActivities []ActivityChange `json:"modified_activities,omitempty"`
}

// Empty reports whether the update carries no change.
func (u Update) Empty() bool {
	return !u.NewCourse &&
		len(u.NewSections) == 0 &&
		len(u.ModifiedSections) == 0 &&
		len(u.NewActivities) == 0 &&
		len(u.ModifiedActivities) == 0
}

// Diff compares current against previous, course by course in current
// order. Removed courses, sections and activities are not reported, nor are
// section renames or re-orderings. Activities are matched by name within a
// section; with duplicate names the last occurrence wins.
func Diff(current, previous *Snapshot) []Update {
	var updates []Update
	for _, code := range current.Codes() {
		secs, _ := current.Sections(code)
		prevSecs, existed := previous.Sections(code)
		if !existed {
			updates = append(updates, Update{Code: code, NewCourse: true, Sections: secs})
			continue
		}

		prevByID := make(map[string]Section, len(prevSecs))
		for _, s := range prevSecs {
			prevByID[s.ID] = s
		}

		u := Update{Code: code}
		for _, sec := range secs {
			prev, ok := prevByID[sec.ID]
			if !ok {
				u.NewSections = append(u.NewSections, sec)
				continue
			}
			added, changed := diffActivities(sec.Activities, prev.Activities)
			u.NewActivities = append(u.NewActivities, added...)
			u.ModifiedActivities = append(u.ModifiedActivities, changed...)
		}
		if !u.Empty() {
			updates = append(updates, u)
		}
	}
	return updates
}

func diffActivities(current, previous []Activity) (added []Activity, changed []ActivityChange) {
	prev := make(map[string]Activity, len(previous))
	for _, a := range previous {
		prev[a.Name] = a
	}

	// Collapse duplicates in current onto the position of the first
	// occurrence, keeping the last value.
	var names []string
	cur := make(map[string]Activity, len(current))
	for _, a := range current {
		if _, seen := cur[a.Name]; !seen {
			names = append(names, a.Name)
		}
		cur[a.Name] = a
	}

	for _, name := range names {
		a := cur[name]
		old, ok := prev[name]
		switch {
		case !ok:
			added = append(added, a)
		case old != a:
			changed = append(changed, ActivityChange{Name: name, Old: old, New: a})
		}
	}
	return added, changed
}
