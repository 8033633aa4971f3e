package answer

import (
	"encoding/json"
	"testing"
)

func TestUnmarshal_WireVariants(t *testing.T) {
	var single Value
	if err := json.Unmarshal([]byte(`"health"`), &single); err != nil {
		t.Fatalf("single: %v", err)
	}
	if single.Kind() != KindSingle || single.Text() != "health" {
		t.Fatalf("single decoded wrong: %v", single)
	}

	var multi Value
	if err := json.Unmarshal([]byte(`["a","b"]`), &multi); err != nil {
		t.Fatalf("multi: %v", err)
	}
	if multi.Kind() != KindMulti || !multi.Contains("b") {
		t.Fatalf("multi decoded wrong: %v", multi)
	}

	var text Value
	if err := json.Unmarshal([]byte(`{"text":"hola"}`), &text); err != nil {
		t.Fatalf("text: %v", err)
	}
	if text.Kind() != KindText || text.Text() != "hola" {
		t.Fatalf("text decoded wrong: %v", text)
	}

	var none Value
	if err := json.Unmarshal([]byte(`null`), &none); err != nil {
		t.Fatalf("null: %v", err)
	}
	if !none.IsZero() {
		t.Fatalf("null must decode to the zero value: %v", none)
	}
}

func TestUnmarshal_RejectsMalformedValues(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`[1,2]`), &v); err == nil {
		t.Fatal("expected error for non-string selections")
	}
	if err := json.Unmarshal([]byte(`{"no":"tag"}`), &v); err == nil {
		t.Fatal("expected error for untagged object")
	}
}

func TestMarshal_TextSurvivesRoundTrip(t *testing.T) {
	data, err := json.Marshal(FreeText("hola"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind() != KindText {
		t.Fatalf("text answer came back as %v", decoded.Kind())
	}
}

func TestMergeMaps_LatterWinsWithoutMutation(t *testing.T) {
	a := Map{"q1": Single("old"), "q2": Single("keep")}
	b := Map{"q1": Single("new")}

	merged := MergeMaps(a, b)
	if !merged["q1"].Equal(Single("new")) || !merged["q2"].Equal(Single("keep")) {
		t.Fatalf("merge wrong: %v", merged)
	}
	if !a["q1"].Equal(Single("old")) {
		t.Fatal("merge mutated its input")
	}
}
