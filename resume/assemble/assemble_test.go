package assemble

import (
	"testing"
	"time"

	"certiresume-backend/internal/extraction"
	"certiresume-backend/resume/model"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	ts := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &ts
}

func TestAssembleFirstNonEmptyScalarWins(t *testing.T) {
	records := []Record{
		{Position: 1, Fields: extraction.Fields{Title: "Cert A"}},
		{Position: 2, Fields: extraction.Fields{Title: "Cert B", Recipient: "Jane Smith", Email: "jane@example.com"}},
		{Position: 3, Fields: extraction.Fields{Title: "Cert C", Recipient: "J. Smith", Email: "other@example.com"}},
	}

	draft := Assemble(model.Draft{}, records)
	if draft.FullName.Value != "Jane Smith" {
		t.Errorf("FullName = %q, want first non-empty recipient", draft.FullName.Value)
	}
	if draft.Email.Value != "jane@example.com" {
		t.Errorf("Email = %q", draft.Email.Value)
	}
	if draft.FullName.UserEdited {
		t.Error("assembled field marked user-edited")
	}
}

func TestAssemblePreservesUserEditedScalars(t *testing.T) {
	prev := model.Draft{}
	name := "Janet S. Smith"
	ApplyEdits(&prev, Edits{FullName: &name})

	records := []Record{
		{Position: 1, Fields: extraction.Fields{Recipient: "Jane Smith"}},
	}
	draft := Assemble(prev, records)
	if draft.FullName.Value != "Janet S. Smith" {
		t.Errorf("FullName = %q, want the user's edit preserved", draft.FullName.Value)
	}
	if !draft.FullName.UserEdited {
		t.Error("UserEdited flag lost")
	}
}

func TestAssembleResetReturnsFieldToAssembler(t *testing.T) {
	prev := model.Draft{}
	name := "Janet S. Smith"
	ApplyEdits(&prev, Edits{FullName: &name})
	ApplyEdits(&prev, Edits{ResetFields: []string{"fullName"}})

	draft := Assemble(prev, []Record{
		{Position: 1, Fields: extraction.Fields{Recipient: "Jane Smith"}},
	})
	if draft.FullName.Value != "Jane Smith" {
		t.Errorf("FullName = %q, want assembler value after reset", draft.FullName.Value)
	}
}

func TestAssembleSkillsDedupCaseInsensitiveFirstSeen(t *testing.T) {
	records := []Record{
		{Position: 1, Fields: extraction.Fields{Skills: []string{"Go", "SQL"}}},
		{Position: 2, Fields: extraction.Fields{Skills: []string{"go", "Docker", "sql", "Terraform"}}},
	}
	draft := Assemble(model.Draft{}, records)

	want := []string{"Go", "SQL", "Docker", "Terraform"}
	if len(draft.Skills) != len(want) {
		t.Fatalf("Skills = %v, want %v", draft.Skills, want)
	}
	for i := range want {
		if draft.Skills[i] != want[i] {
			t.Errorf("Skills[%d] = %q, want %q", i, draft.Skills[i], want[i])
		}
	}
}

func TestAssembleUserSkillsAppendAfterAssembled(t *testing.T) {
	prev := model.Draft{}
	userSkills := []string{"Public Speaking", "go"}
	ApplyEdits(&prev, Edits{Skills: &userSkills})

	draft := Assemble(prev, []Record{
		{Position: 1, Fields: extraction.Fields{Skills: []string{"Go", "SQL"}}},
	})
	all := draft.AllSkills()
	want := []string{"Go", "SQL", "Public Speaking"}
	if len(all) != len(want) {
		t.Fatalf("AllSkills = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("AllSkills[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestAssembleOrdersByDateDescendingUndatedLast(t *testing.T) {
	records := []Record{
		{Position: 1, Fields: extraction.Fields{Title: "Old", IssuedAt: datePtr(2020, time.January, 1)}},
		{Position: 2, Fields: extraction.Fields{Title: "Undated A"}},
		{Position: 3, Fields: extraction.Fields{Title: "New", IssuedAt: datePtr(2024, time.June, 1)}},
		{Position: 4, Fields: extraction.Fields{Title: "Undated B"}},
	}
	draft := Assemble(model.Draft{}, records)

	got := make([]string, 0, len(draft.Experience))
	for _, cred := range draft.Experience {
		got = append(got, cred.Title)
	}
	want := []string{"New", "Old", "Undated A", "Undated B"}
	if len(got) != len(want) {
		t.Fatalf("Experience order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Experience[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAssembleRoutesAcademicRecordsToEducation(t *testing.T) {
	records := []Record{
		{Position: 1, Fields: extraction.Fields{Title: "Bachelor of Science", Academic: true}},
		{Position: 2, Fields: extraction.Fields{Title: "AWS Solutions Architect"}},
	}
	draft := Assemble(model.Draft{}, records)
	if len(draft.Education) != 1 || draft.Education[0].Title != "Bachelor of Science" {
		t.Errorf("Education = %+v", draft.Education)
	}
	if len(draft.Experience) != 1 || draft.Experience[0].Title != "AWS Solutions Architect" {
		t.Errorf("Experience = %+v", draft.Experience)
	}
}

func TestAssembleZeroRecordsYieldsEmptyDraft(t *testing.T) {
	draft := Assemble(model.Draft{}, nil)
	if draft.FullName.Value != "" || len(draft.Skills) != 0 {
		t.Errorf("draft = %+v, want empty", draft)
	}
	if draft.Experience == nil || draft.Education == nil {
		t.Error("lists should be empty, not nil")
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	records := []Record{
		{Position: 1, Fields: extraction.Fields{Recipient: "Jane Smith", Skills: []string{"Go"}, IssuedAt: datePtr(2023, time.May, 2)}},
		{Position: 2, Fields: extraction.Fields{Skills: []string{"SQL"}}},
	}
	once := Assemble(model.Draft{}, records)
	twice := Assemble(once, records)

	if once.FullName != twice.FullName {
		t.Errorf("FullName changed: %+v vs %+v", once.FullName, twice.FullName)
	}
	if len(once.Skills) != len(twice.Skills) {
		t.Fatalf("Skills changed: %v vs %v", once.Skills, twice.Skills)
	}
	if len(once.Experience) != len(twice.Experience) {
		t.Fatalf("Experience changed: %v vs %v", once.Experience, twice.Experience)
	}
}
