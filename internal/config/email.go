package config

import (
	"net"
	"strconv"
	"strings"
)

// TLS modes for outbound SMTP.
const (
	TLSModeNone     = "none"
	TLSModeStartTLS = "starttls"
	TLSModeImplicit = "smtps"
)

// EffectiveTLSMode normalizes SMTP.TLSMode. An empty or unknown value falls
// back to the TLS boolean.
func (c *EmailConfig) EffectiveTLSMode() string {
	if c == nil {
		return TLSModeNone
	}
	switch strings.ToLower(strings.TrimSpace(c.SMTP.TLSMode)) {
	case "starttls", "tls":
		return TLSModeStartTLS
	case "smtps", "implicit":
		return TLSModeImplicit
	case "none", "off":
		return TLSModeNone
	}
	if c.SMTP.TLS {
		return TLSModeStartTLS
	}
	return TLSModeNone
}

// Addr returns host:port for the SMTP server.
func (c *EmailConfig) Addr() string {
	return net.JoinHostPort(c.SMTP.Host, strconv.Itoa(c.SMTP.Port))
}
