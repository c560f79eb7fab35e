package extract

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/shineum/smtp2webhook/internal/email"
)

func addrs(list ...string) []email.Address {
	out := make([]email.Address, 0, len(list))
	for _, a := range list {
		out = append(out, email.Address{Address: a})
	}
	return out
}

func TestFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		parsed *email.ParsedMessage
		env    *email.Envelope
		want   string
	}{
		{
			name:   "envelope wins over header text",
			parsed: &email.ParsedMessage{From: email.AddressText("header@x.com")},
			env:    &email.Envelope{MailFrom: &email.Address{Address: "env@x.com"}},
			want:   "env@x.com",
		},
		{
			name:   "empty envelope sender falls through",
			parsed: &email.ParsedMessage{From: email.AddressText("header@x.com")},
			env:    &email.Envelope{MailFrom: &email.Address{Address: ""}},
			want:   "header@x.com",
		},
		{
			name:   "object text",
			parsed: &email.ParsedMessage{From: email.AddressObject("Alice <a@x.com>", addrs("a@x.com"))},
			want:   "Alice <a@x.com>",
		},
		{
			name:   "object value first address",
			parsed: &email.ParsedMessage{From: email.AddressValues(addrs("a@x.com", "b@x.com")...)},
			want:   "a@x.com",
		},
		{
			name:   "plain string",
			parsed: &email.ParsedMessage{From: email.AddressString("raw@x.com")},
			want:   "raw@x.com",
		},
		{
			name:   "bare list is not a sender shape",
			parsed: &email.ParsedMessage{From: email.AddressList(addrs("a@x.com")...)},
			want:   "",
		},
		{
			name:   "absent",
			parsed: &email.ParsedMessage{},
			want:   "",
		},
		{
			name: "nil parsed message",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := From(tt.parsed, tt.env); got != tt.want {
				t.Errorf("From: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		parsed *email.ParsedMessage
		env    *email.Envelope
		want   string
	}{
		{
			name:   "absent",
			parsed: &email.ParsedMessage{},
			want:   "",
		},
		{
			name:   "plain string returned as is",
			parsed: &email.ParsedMessage{To: email.AddressString("b@y.com,c@y.com")},
			want:   "b@y.com,c@y.com",
		},
		{
			name:   "object text",
			parsed: &email.ParsedMessage{To: email.AddressText("Bob <b@y.com>")},
			want:   "Bob <b@y.com>",
		},
		{
			name:   "object text preferred over value",
			parsed: &email.ParsedMessage{To: email.AddressObject("Bob <b@y.com>", addrs("b@y.com"))},
			want:   "Bob <b@y.com>",
		},
		{
			name:   "object value joined",
			parsed: &email.ParsedMessage{To: email.AddressValues(addrs("b@y.com", "c@y.com")...)},
			want:   "b@y.com, c@y.com",
		},
		{
			name:   "empty text falls back to value",
			parsed: &email.ParsedMessage{To: email.AddressObject("", addrs("b@y.com"))},
			want:   "b@y.com",
		},
		{
			name:   "bare list joined",
			parsed: &email.ParsedMessage{To: email.AddressList(addrs("b@y.com", "c@y.com", "d@y.com")...)},
			want:   "b@y.com, c@y.com, d@y.com",
		},
		{
			name:   "bare list with string entries",
			parsed: &email.ParsedMessage{To: email.AddressListEntries("b@y.com", email.Address{Address: "c@y.com"}, "d@y.com")},
			want:   "b@y.com, c@y.com, d@y.com",
		},
		{
			name:   "empty bare list",
			parsed: &email.ParsedMessage{To: email.AddressList()},
			want:   "",
		},
		{
			name:   "envelope recipients win",
			parsed: &email.ParsedMessage{To: email.AddressValues(addrs("b@y.com", "c@y.com")...)},
			env:    &email.Envelope{RcptTo: addrs("d@z.com")},
			want:   "d@z.com",
		},
		{
			name:   "empty envelope recipients fall back to header",
			parsed: &email.ParsedMessage{To: email.AddressText("b@y.com")},
			env:    &email.Envelope{},
			want:   "b@y.com",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := To(tt.parsed, tt.env); got != tt.want {
				t.Errorf("To: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	if got := Subject(&email.ParsedMessage{}); got != "" {
		t.Errorf("absent subject: got %q, want empty", got)
	}
	if got := Subject(&email.ParsedMessage{Subject: email.String("Hi")}); got != "Hi" {
		t.Errorf("subject: got %q, want %q", got, "Hi")
	}
}

func TestBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		parsed *email.ParsedMessage
		want   string
	}{
		{"text preferred over html", &email.ParsedMessage{Text: email.String("plain"), HTML: email.String("<p>html</p>")}, "plain"},
		{"empty text falls back to html", &email.ParsedMessage{Text: email.String(""), HTML: email.String("<p>html</p>")}, "<p>html</p>"},
		{"html only", &email.ParsedMessage{HTML: email.String("<p>html</p>")}, "<p>html</p>"},
		{"neither", &email.ParsedMessage{}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Body(tt.parsed); got != tt.want {
				t.Errorf("Body: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalize_HeaderOnly(t *testing.T) {
	t.Parallel()

	parsed := &email.ParsedMessage{
		From:    email.AddressText("a@x.com"),
		To:      email.AddressValues(addrs("b@y.com", "c@y.com")...),
		Subject: email.String("Hi"),
		Text:    email.String("Hello"),
	}
	now := time.Date(2024, 3, 5, 7, 8, 9, 123_000_000, time.UTC)

	msg := Canonicalize(parsed, nil, now)

	if msg.From != "a@x.com" {
		t.Errorf("From: got %q, want %q", msg.From, "a@x.com")
	}
	if msg.To != "b@y.com, c@y.com" {
		t.Errorf("To: got %q, want %q", msg.To, "b@y.com, c@y.com")
	}
	if msg.Subject != "Hi" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Hi")
	}
	if msg.Body != "Hello" {
		t.Errorf("Body: got %q, want %q", msg.Body, "Hello")
	}
	if msg.Timestamp != "2024-03-05T07:08:09.123Z" {
		t.Errorf("Timestamp: got %q, want %q", msg.Timestamp, "2024-03-05T07:08:09.123Z")
	}
	if msg.HTML != "" {
		t.Errorf("HTML: got %q, want empty", msg.HTML)
	}
}

func TestCanonicalize_EnvelopeWins(t *testing.T) {
	t.Parallel()

	parsed := &email.ParsedMessage{
		From: email.AddressText("header@x.com"),
		To:   email.AddressValues(addrs("b@y.com", "c@y.com")...),
		HTML: email.String("<b>x</b>"),
	}
	env := &email.Envelope{
		MailFrom: &email.Address{Address: "a@x.com"},
		RcptTo:   addrs("d@z.com"),
	}

	msg := Canonicalize(parsed, env, time.Now())

	if msg.From != "a@x.com" {
		t.Errorf("From: got %q, want %q", msg.From, "a@x.com")
	}
	if msg.To != "d@z.com" {
		t.Errorf("To: got %q, want %q", msg.To, "d@z.com")
	}
	if msg.Body != "<b>x</b>" || msg.HTML != "<b>x</b>" {
		t.Errorf("Body/HTML: got %q/%q, want html for both", msg.Body, msg.HTML)
	}
}

func addressGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		local := rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "local")
		domain := rapid.StringMatching(`[a-z]{2,10}\.[a-z]{2,4}`).Draw(t, "domain")
		return local + "@" + domain
	})
}

func addressFieldGen() *rapid.Generator[email.AddressField] {
	return rapid.Custom(func(t *rapid.T) email.AddressField {
		list := addrs(rapid.SliceOfN(addressGen(), 0, 4).Draw(t, "addrs")...)
		switch rapid.IntRange(0, 4).Draw(t, "shape") {
		case 0:
			return email.NoAddress()
		case 1:
			return email.AddressString(email.JoinAddresses(list))
		case 2:
			return email.AddressText(email.JoinAddresses(list))
		case 3:
			return email.AddressValues(list...)
		default:
			return email.AddressList(list...)
		}
	})
}

func TestProperty_EnvelopePrecedence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		parsed := &email.ParsedMessage{
			From: addressFieldGen().Draw(t, "from"),
			To:   addressFieldGen().Draw(t, "to"),
		}
		sender := addressGen().Draw(t, "sender")
		rcpts := rapid.SliceOfN(addressGen(), 1, 5).Draw(t, "rcpts")
		env := &email.Envelope{
			MailFrom: &email.Address{Address: sender},
			RcptTo:   addrs(rcpts...),
		}

		if got := From(parsed, env); got != sender {
			t.Fatalf("From: got %q, want %q", got, sender)
		}
		if got, want := To(parsed, env), strings.Join(rcpts, ", "); got != want {
			t.Fatalf("To: got %q, want %q", got, want)
		}
	})
}

func TestProperty_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		parsed := &email.ParsedMessage{
			From: addressFieldGen().Draw(t, "from"),
			To:   addressFieldGen().Draw(t, "to"),
		}
		if rapid.Bool().Draw(t, "hasText") {
			parsed.Text = email.String(rapid.String().Draw(t, "text"))
		}
		if rapid.Bool().Draw(t, "hasHTML") {
			parsed.HTML = email.String(rapid.String().Draw(t, "html"))
		}
		now := time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "now"), 0)

		first := Canonicalize(parsed, nil, now)
		second := Canonicalize(parsed, nil, now)
		if first != second {
			t.Fatalf("Canonicalize not deterministic: %+v vs %+v", first, second)
		}
		if parsed.Text != nil && *parsed.Text != "" && first.Body != *parsed.Text {
			t.Fatalf("Body: got %q, want text %q", first.Body, *parsed.Text)
		}
	})
}

func ExampleCanonicalize() {
	parsed := &email.ParsedMessage{
		From:    email.AddressText("a@x.com"),
		To:      email.AddressValues(email.Address{Address: "b@y.com"}, email.Address{Address: "c@y.com"}),
		Subject: email.String("Hi"),
		Text:    email.String("Hello"),
	}
	msg := Canonicalize(parsed, nil, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	fmt.Println(msg.From, "|", msg.To, "|", msg.Subject, "|", msg.Body, "|", msg.Timestamp)
	// Output: a@x.com | b@y.com, c@y.com | Hi | Hello | 2024-01-02T03:04:05.000Z
}
