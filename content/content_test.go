// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package content

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		s string
		t Type
	}{
		{"", Text},
		{"HELLO WORLD", Text},
		{"https://example.com/a?b=c", URL},
		{"HTTP://EXAMPLE.COM", URL},
		{"ftp://ftp.example.org/pub", URL},
		{"example.com", URL},
		{"www.example.co.uk/path/to", URL},
		{"192.168.0.1", URL},
		{"localhost:8080/x", URL},
		{"3.14", Text},
		{"v1.2", Text},
		{"hello", Text},
		{"bad-.example.com", Text},
		{"mailto:user@example.com", Email},
		{"MATMSG:TO:user@example.com;SUB:hi;;", Email},
		{"user@example.com", Email},
		{"user@localhost", Text},
		{"tel:+15551234567", Phone},
		{"SMSTO:+15551234567:hello", SMS},
		{"sms:+15551234567", SMS},
		{"WIFI:T:WPA;S:home;P:secret;;", WiFi},
		{"BEGIN:VCARD\nVERSION:3.0\nFN:A\nEND:VCARD", Contact},
		{"MECARD:N:Doe,John;TEL:123;;", Contact},
		{"geo:37.786971,-122.399677", Geo},
		{"BEGIN:VEVENT\nSUMMARY:x\nEND:VEVENT", Event},
		{"  https://example.com  ", URL},
		{"see example.com", Text},
	}
	for _, tt := range tests {
		if got := Classify(tt.s); got != tt.t {
			t.Errorf("Classify(%q) = %v, want %v", tt.s, got, tt.t)
		}
	}
}

func TestTypeString(t *testing.T) {
	if s := Event.String(); s != "event" {
		t.Errorf("Event = %q", s)
	}
	if s := Type(99).String(); s != "unknown" {
		t.Errorf("Type(99) = %q", s)
	}
}

func TestParseWiFi(t *testing.T) {
	tests := []struct {
		s string
		n Network
	}{
		{"WIFI:T:WPA;S:home;P:secret;;", Network{"home", "WPA", "secret", false}},
		{"wifi:S:cafe;T:nopass;;", Network{"cafe", "nopass", "", false}},
		{"WIFI:S:hid;H:true;P:x;;", Network{"hid", "", "x", true}},
		{`WIFI:S:a\;b;P:c\:d\;;`, Network{"a;b", "", "c:d;", false}},
		{"WIFI:P:pass;S:last", Network{"last", "", "pass", false}},
	}
	for _, tt := range tests {
		n, err := ParseWiFi(tt.s)
		if err != nil {
			t.Errorf("%q: %v", tt.s, err)
			continue
		}
		if *n != tt.n {
			t.Errorf("%q: %+v, want %+v", tt.s, *n, tt.n)
		}
	}
	if _, err := ParseWiFi("https://example.com"); err != ErrNotWiFi {
		t.Errorf("URL: err = %v", err)
	}
	if _, err := ParseWiFi("WIFI:T:WPA;P:x;;"); err != ErrNoSSID {
		t.Errorf("no SSID: err = %v", err)
	}
}
