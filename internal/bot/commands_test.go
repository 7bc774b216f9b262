package bot

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()
	cases := []struct {
		text string
		cmd  string
		args []string
		ok   bool
	}{
		{"/start 42", "start", []string{"42"}, true},
		{"/balance@bear_tycoon_bot", "balance", nil, true},
		{"!баланс", "balance", nil, true},
		{".Кейс rare", "case", []string{"rare"}, true},
		{"  /fuse common 1 2  ", "fuse", []string{"common", "1", "2"}, true},
		{"привет", "", nil, false},
		{"/", "", nil, false},
	}
	for _, tc := range cases {
		cmd, args, ok := p.ParseCommand(tc.text)
		if cmd != tc.cmd || ok != tc.ok || !reflect.DeepEqual(args, tc.args) {
			t.Fatalf("ParseCommand(%q) = %q %v %v, want %q %v %v", tc.text, cmd, args, ok, tc.cmd, tc.args, tc.ok)
		}
	}
}

func TestAliasesPointToRoutedCommands(t *testing.T) {
	known := map[string]bool{}
	for _, c := range []string{
		"help", "balance", "history", "ref", "exchange", "withdraw", "daily", "wheel", "streak",
		"pets", "shop", "buy", "collect", "levelup", "tokenize", "cases", "case", "casestats",
		"upgrades", "upgrade", "sub", "fuse", "market", "sell", "purchase", "unlist", "battle",
	} {
		known[c] = true
	}
	for alias, cmd := range aliases {
		if !known[cmd] {
			t.Fatalf("alias %q -> unknown command %q", alias, cmd)
		}
	}
}
