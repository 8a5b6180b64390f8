package render

import "testing"

func TestRender_Substitution(t *testing.T) {
	got := Render("Hi {{name}}, rent for {{month}} is {{amount}}.", map[string]string{
		"name":   "Asha",
		"month":  "May",
		"amount": "5000",
	})
	want := "Hi Asha, rent for May is 5000."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_UnknownTokenLeftAsIs(t *testing.T) {
	got := Render("Hi {{name}}, see you at {{time}}.", map[string]string{"name": "Ravi"})
	want := "Hi Ravi, see you at {{time}}."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_WhitespaceInsideBraces(t *testing.T) {
	got := Render("{{ name }} / {{name}}", map[string]string{"name": "x"})
	if got != "x / x" {
		t.Fatalf("got %q", got)
	}
}

func TestRender_Deterministic(t *testing.T) {
	vars := map[string]string{"a": "1"}
	first := Render("{{a}}{{b}}", vars)
	for i := 0; i < 5; i++ {
		if got := Render("{{a}}{{b}}", vars); got != first {
			t.Fatalf("render not deterministic: %q vs %q", got, first)
		}
	}
	if first != "1{{b}}" {
		t.Fatalf("got %q", first)
	}
}

func TestRender_NoTokens(t *testing.T) {
	if got := Render("plain text", nil); got != "plain text" {
		t.Fatalf("got %q", got)
	}
}
