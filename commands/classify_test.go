package commands

import (
	"context"
	"testing"
)

type stubCommand struct {
	name string
	raw  bool
}

func (c *stubCommand) Name() string        { return c.name }
func (c *stubCommand) Description() string { return "stub" }
func (c *stubCommand) RawArgs() bool       { return c.raw }
func (c *stubCommand) Execute(context.Context, *Invocation) (*Result, error) {
	return &Result{Reply: "ok"}, nil
}

func TestClassify(t *testing.T) {
	cases := []struct {
		body      string
		wantName  string
		wantRest  string
		isCommand bool
	}{
		{body: "!gptbot help", wantName: "help", wantRest: "", isCommand: true},
		{body: "!gptbot imagine a teapot in space", wantName: "imagine", wantRest: "a teapot in space", isCommand: true},
		{body: "!GPTBot Help", wantName: "help", wantRest: "", isCommand: true},
		{body: "!gptbot", wantName: "help", wantRest: "", isCommand: true},
		{body: "!help", wantName: "help", wantRest: "", isCommand: true},
		{body: "hello bot", isCommand: false},
		{body: "", isCommand: false},
		{body: "!gptbotx nope", isCommand: false},
		{body: "  !gptbot stats  ", wantName: "stats", wantRest: "", isCommand: true},
	}
	for _, tc := range cases {
		name, rest, isCommand := Classify("!gptbot", tc.body)
		if isCommand != tc.isCommand {
			t.Fatalf("Classify(%q) isCommand = %v, want %v", tc.body, isCommand, tc.isCommand)
		}
		if !isCommand {
			continue
		}
		if name != tc.wantName {
			t.Fatalf("Classify(%q) name = %q, want %q", tc.body, name, tc.wantName)
		}
		if rest != tc.wantRest {
			t.Fatalf("Classify(%q) rest = %q, want %q", tc.body, rest, tc.wantRest)
		}
	}
}

func TestParseTokenizesUnlessRawRequested(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubCommand{name: "parcel"})
	reg.Register(&stubCommand{name: "imagine", raw: true})

	inv := Parse(reg, "parcel", "RR123456785GB extra", "!room:example.org", "@alice:example.org", "$ev1")
	if len(inv.Args) != 2 || inv.Args[0] != "RR123456785GB" {
		t.Fatalf("Args = %v, want two tokens", inv.Args)
	}

	inv = Parse(reg, "imagine", "a teapot in space", "!room:example.org", "@alice:example.org", "$ev2")
	if inv.Args != nil {
		t.Fatalf("Args = %v, want nil for raw-args handler", inv.Args)
	}
	if inv.RawArgs != "a teapot in space" {
		t.Fatalf("RawArgs = %q", inv.RawArgs)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	_, err := Dispatch(context.Background(), reg, &Invocation{Name: "frobnicate"})
	if err != ErrUnknownCommand {
		t.Fatalf("Dispatch() error = %v, want ErrUnknownCommand", err)
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubCommand{name: "help"})
	if _, ok := reg.Get("HELP"); !ok {
		t.Fatalf("Get(HELP) = false, want true")
	}
	if reg.Names() != "help" {
		t.Fatalf("Names() = %q", reg.Names())
	}
}
