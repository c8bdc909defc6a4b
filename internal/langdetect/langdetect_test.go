package langdetect

import "testing"

func TestDetect(t *testing.T) {
	d := New()

	cases := []struct {
		text string
		want string
	}{
		{text: "The quick brown fox jumps over the lazy dog while the farmer watches from the porch.", want: "eng"},
		{text: "El rápido zorro marrón salta sobre el perro perezoso mientras el granjero mira desde el porche.", want: "spa"},
		{text: "Der schnelle braune Fuchs springt über den faulen Hund, während der Bauer von der Veranda zusieht.", want: "deu"},
		{text: "Быстрая коричневая лиса перепрыгивает через ленивую собаку, пока фермер смотрит с крыльца.", want: "rus"},
	}
	for _, tc := range cases {
		if got := d.Detect(tc.text); got != tc.want {
			t.Fatalf("Detect(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectShortText(t *testing.T) {
	if got := New().Detect("  hello  "); got != "" {
		t.Fatalf("expected no guess for short text, got %q", got)
	}
}
