package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"deeplink/internal/model"
)

const certExpiryWarnDays = 14

// TLSProber inspects the certificate a host serves.
type TLSProber interface {
	Probe(ctx context.Context, host string) *model.TLSInfo
}

type TLSProbe struct {
	Port    string
	Timeout time.Duration
	// RootCAs overrides the system pool.
	RootCAs *x509.CertPool
}

func NewTLSProbe() *TLSProbe {
	return &TLSProbe{Port: "443", Timeout: 5 * time.Second}
}

// Probe completes a handshake without verification, then verifies the
// chain against host separately so the certificate details are reported
// even when it is invalid.
func (p *TLSProbe) Probe(ctx context.Context, host string) *model.TLSInfo {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, p.Port)
	}
	name, _, _ := net.SplitHostPort(addr)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.Timeout},
		Config:    &tls.Config{InsecureSkipVerify: true, ServerName: name},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &model.TLSInfo{Error: err.Error()}
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return &model.TLSInfo{Error: "no certificates found"}
	}
	cert := state.PeerCertificates[0]

	info := &model.TLSInfo{
		Issuer:      cert.Issuer.CommonName,
		Subject:     cert.Subject.CommonName,
		Expiry:      cert.NotAfter,
		DaysLeft:    int(time.Until(cert.NotAfter).Hours() / 24),
		Protocol:    tls.VersionName(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
	}

	intermediates := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		intermediates.AddCert(c)
	}
	_, err = cert.Verify(x509.VerifyOptions{
		DNSName:       name,
		Roots:         p.RootCAs,
		Intermediates: intermediates,
	})
	if err != nil {
		info.VerifyError = err.Error()
	} else {
		info.Verified = true
	}
	return info
}

// AnalyzeTLS turns a probe result into a common check.
func AnalyzeTLS(info *model.TLSInfo) model.Check {
	c := model.Check{Title: "TLS Certificate", Refs: appleRefs}
	switch {
	case info == nil:
		c.Text = "Certificate was not inspected."
		c.Status = model.StatusNeutral
	case info.Error != "":
		c.Text = "Could not complete a TLS handshake."
		c.Details = []string{"Reason: " + info.Error}
		c.Status = model.StatusFail
	case !info.Verified:
		c.Text = "Certificate is not trusted for this domain."
		c.Details = []string{"Reason: " + info.VerifyError, "Issuer: " + info.Issuer}
		c.Status = model.StatusFail
	default:
		c.Text = "Certificate is valid."
		c.Details = []string{
			"Issuer: " + info.Issuer,
			"Subject: " + info.Subject,
			fmt.Sprintf("Expires: %s (%d days left)", info.Expiry.Format("2006-01-02"), info.DaysLeft),
			"Protocol: " + info.Protocol,
		}
		c.Status = model.StatusPass
		if info.DaysLeft < certExpiryWarnDays {
			c.Text = "Certificate expires soon."
			c.Status = model.StatusWarning
		}
	}
	return c
}
