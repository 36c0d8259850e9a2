package domain

import (
	"encoding/json"
	"testing"
)

func TestAnswerFieldsUnmarshalDefaultsChoice(t *testing.T) {
	var absent AnswerFields
	if err := json.Unmarshal([]byte(`{"artist":"Queen"}`), &absent); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if absent.Choice != NoChoice {
		t.Fatalf("omitted choice must decode as NoChoice, got %d", absent.Choice)
	}
	if absent.Artist != "Queen" {
		t.Fatalf("unexpected artist %q", absent.Artist)
	}

	var zero AnswerFields
	if err := json.Unmarshal([]byte(`{"choice":0}`), &zero); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if zero.Choice != 0 {
		t.Fatalf("explicit choice 0 must survive decoding, got %d", zero.Choice)
	}
}

func TestAnswerCloneDetachesScores(t *testing.T) {
	orig := Answer{
		ID:     "a1",
		Scores: map[ScoreField]float64{FieldArtist: 1},
	}

	copied := orig.Clone()
	orig.Scores[FieldArtist] = 0
	orig.Scores[FieldTitle] = 0.5

	if copied.Scores[FieldArtist] != 1 {
		t.Fatalf("clone must keep its own artist score, got %v", copied.Scores[FieldArtist])
	}
	if _, ok := copied.Scores[FieldTitle]; ok {
		t.Fatalf("writes after cloning must not reach the clone")
	}
}
