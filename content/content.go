// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package content classifies the text of decoded QR codes.
package content // import "github.com/unixdj/qrcodec/content"

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
)

// A Type is the kind of content a QR code carries.
type Type int

const (
	Text    Type = iota // plain text
	URL                 // web or FTP address
	Email               // e-mail address or mailto: URI
	Phone               // tel: URI
	SMS                 // sms: or smsto: URI
	WiFi                // WIFI: network configuration
	Contact             // vCard or MECARD
	Geo                 // geo: URI
	Event               // iCalendar event
)

var typeNames = [...]string{
	"text", "url", "email", "phone", "sms", "wifi", "contact", "geo",
	"event",
}

func (t Type) String() string {
	if 0 <= t && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Prefixes are matched case-insensitively, in order.
var prefixes = [...]struct {
	prefix string
	t      Type
}{
	{"http://", URL},
	{"https://", URL},
	{"ftp://", URL},
	{"mailto:", Email},
	{"matmsg:", Email},
	{"tel:", Phone},
	{"sms:", SMS},
	{"smsto:", SMS},
	{"mms:", SMS},
	{"mmsto:", SMS},
	{"wifi:", WiFi},
	{"begin:vcard", Contact},
	{"mecard:", Contact},
	{"geo:", Geo},
	{"begin:vevent", Event},
	{"begin:vcalendar", Event},
}

// Classify returns the type of the decoded text s.
func Classify(s string) Type {
	s = strings.TrimSpace(s)
	for _, p := range prefixes {
		if hasPrefixFold(s, p.prefix) {
			return p.t
		}
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return Text
	}
	if isAddress(s) {
		return Email
	}
	if isHost(s) {
		return URL
	}
	return Text
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// isAddress reports whether s is a bare e-mail address.
func isAddress(s string) bool {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || !strings.Contains(s[at:], ".") {
		return false
	}
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// isHost reports whether s looks like a host name, optionally
// followed by a path, such as "example.com/page".
func isHost(s string) bool {
	u, err := url.Parse("http://" + s)
	if err != nil || u.User != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || l[0] == '-' || l[len(l)-1] == '-' {
			return false
		}
		for _, c := range l {
			if !(c == '-' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
				return false
			}
		}
	}
	// The top level domain is alphabetic, or the host is an IPv4
	// address.
	tld := labels[len(labels)-1]
	if strings.Trim(tld, "0123456789") == "" {
		return len(labels) == 4
	}
	return len(tld) >= 2 && strings.Trim(strings.ToLower(tld), "abcdefghijklmnopqrstuvwxyz") == ""
}

// Errors returned by ParseWiFi.
var (
	ErrNotWiFi = errors.New("qr: not a WIFI: payload")
	ErrNoSSID  = errors.New("qr: WIFI: payload without SSID")
)

// A Network is a Wi-Fi network configuration.
type Network struct {
	SSID     string
	Auth     string // WEP, WPA, nopass, etc.; empty if absent
	Password string
	Hidden   bool
}

// ParseWiFi parses a payload of the form
//
//	WIFI:T:WPA;S:network;P:password;H:true;;
//
// Fields may come in any order.  Backslash escapes the next character.
func ParseWiFi(s string) (*Network, error) {
	s = strings.TrimSpace(s)
	if !hasPrefixFold(s, "wifi:") {
		return nil, ErrNotWiFi
	}
	n := new(Network)
	for _, f := range fields(s[len("wifi:"):]) {
		k, v, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "S":
			n.SSID = v
		case "T":
			n.Auth = v
		case "P":
			n.Password = v
		case "H":
			n.Hidden = strings.EqualFold(v, "true")
		}
	}
	if n.SSID == "" {
		return nil, ErrNoSSID
	}
	return n, nil
}

// fields splits s at unescaped semicolons and removes the escapes.
func fields(s string) []string {
	var (
		fs  []string
		b   strings.Builder
		esc bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case esc:
			b.WriteByte(c)
			esc = false
		case c == '\\':
			esc = true
		case c == ';':
			if b.Len() != 0 {
				fs = append(fs, b.String())
			}
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() != 0 {
		fs = append(fs, b.String())
	}
	return fs
}
