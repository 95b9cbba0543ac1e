package transcript_test

import (
	"testing"

	"github.com/MrWong99/lingoxa/internal/transcript"
)

func sample() []transcript.Message {
	tr := transcript.New()
	tr.Append(transcript.RoleAI, `<speak>Hi! <prosody rate="slow">What can I get you?</prosody></speak>`)
	tr.Append(transcript.RoleUser, "A latte, please.")
	tr.Append(transcript.RoleAI, "Coming <emphasis>right</emphasis> up.")
	return tr.Messages()
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`<speak>Hello <emphasis level="strong">there</emphasis></speak>`, "Hello there"},
		{"plain text", "plain text"},
		{"  <speak></speak>  ", ""},
	}
	for _, tt := range tests {
		if got := transcript.StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	got := transcript.Export(sample(), "Sarah")
	want := "Sarah: Hi! What can I get you?\n\nYou: A latte, please.\n\nSarah: Coming right up."
	if got != want {
		t.Errorf("Export =\n%s\nwant\n%s", got, want)
	}
	if transcript.Export(nil, "Sarah") != "" {
		t.Error("empty export should be empty")
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()
	if got := transcript.FileName("cafe-order"); got != "lingoxa-conversation-cafe-order.txt" {
		t.Errorf("FileName = %q", got)
	}
}

func TestForReport(t *testing.T) {
	t.Parallel()

	got := transcript.ForReport(sample())
	want := "AI: Hi! What can I get you?\nUser: A latte, please.\nAI: Coming right up."
	if got != want {
		t.Errorf("ForReport =\n%s\nwant\n%s", got, want)
	}
}
