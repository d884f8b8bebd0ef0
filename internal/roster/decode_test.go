package roster

import (
	"errors"
	"testing"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

func TestDecodeRows(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.AssignmentRow
	}{
		{
			name: "plain array",
			body: `[{"sponsorEmail":"a@x.com","project":"P","student":"S"}]`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "P", Student: "S"}},
		},
		{
			name: "case insensitive aliases",
			body: `[{"Email":"a@x.com","Project Name":"P","STUDENT_NAME":"S"}]`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "P", Student: "S"}},
		},
		{
			name: "sponsorEmail preferred over email",
			body: `[{"email":"b@x.com","sponsorEmail":"a@x.com","project":"P","student":"S"}]`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "P", Student: "S"}},
		},
		{
			name: "data container",
			body: `{"data":[{"email":"a@x.com","project":"P","student":"S"}]}`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "P", Student: "S"}},
		},
		{
			name: "values container",
			body: `{"values":[["Sponsor Email","Project","Student"],["a@x.com","P","S"],["a@x.com","P"]]}`,
			want: []models.AssignmentRow{
				{SponsorEmail: "a@x.com", Project: "P", Student: "S"},
				{SponsorEmail: "a@x.com", Project: "P", Student: ""},
			},
		},
		{
			name: "numbers and nulls",
			body: `[{"email":"a@x.com","project":42,"student":null}]`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "42", Student: ""}},
		},
		{
			name: "non object entries dropped",
			body: `[1, "x", {"email":"a@x.com","project":"P","student":"S"}]`,
			want: []models.AssignmentRow{{SponsorEmail: "a@x.com", Project: "P", Student: "S"}},
		},
		{
			name: "empty values",
			body: `{"values":[]}`,
			want: []models.AssignmentRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRows([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeRows: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d rows, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("row %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDecodeRowsErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape bool
	}{
		{name: "empty", body: "  ", wantShape: true},
		{name: "scalar", body: `"rows"`, wantShape: true},
		{name: "object without fields", body: `{"rows":[]}`, wantShape: true},
		{name: "malformed", body: `[{"email":`},
		{name: "data not array", body: `{"data":{"email":"a"}}`},
		{name: "values not table", body: `{"values":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRows([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantShape && !errors.Is(err, ErrUnsupportedShape) {
				t.Errorf("expected ErrUnsupportedShape, got %v", err)
			}
		})
	}
}

func TestDecodeThenBuild(t *testing.T) {
	rows, err := DecodeRows([]byte(`{"values":[["email","project","student"],["ADA@X.COM","AppX","Bob"],["ada@x.com","AppX","Cara"],["","AppX","Nope"]]}`))
	if err != nil {
		t.Fatalf("DecodeRows: %v", err)
	}

	sp, ok := Build(rows).Lookup("ada@x.com")
	if !ok {
		t.Fatal("sponsor not found")
	}
	students, _ := sp.Students("AppX")
	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %+v", students)
	}
}
