package cert

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// VerifyResult contains the result of certificate verification
type VerifyResult struct {
	Valid       bool
	Role        string // "server", "client" or "unknown"
	Error       string
	Certificate *x509.Certificate
}

// VerifyCertificateFile checks that the certificate at certPath was issued by
// the CA at caCertPath for its declared role
func VerifyCertificateFile(certPath, caCertPath string) (*VerifyResult, error) {
	cert, err := ReadCertificate(certPath)
	if err != nil {
		return nil, err
	}

	caCert, err := ReadCertificate(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	result := &VerifyResult{Certificate: cert, Role: roleOf(cert)}

	usage := x509.ExtKeyUsageAny
	switch result.Role {
	case "server":
		usage = x509.ExtKeyUsageServerAuth
	case "client":
		usage = x509.ExtKeyUsageClientAuth
	}

	issuer := &Issuer{caCert: caCert}
	if err := issuer.Verify(cert, usage); err != nil {
		result.Error = err.Error()
	} else {
		result.Valid = true
	}

	return result, nil
}

func roleOf(cert *x509.Certificate) string {
	for _, u := range cert.ExtKeyUsage {
		switch u {
		case x509.ExtKeyUsageServerAuth:
			return "server"
		case x509.ExtKeyUsageClientAuth:
			return "client"
		}
	}
	return "unknown"
}

// FormatVerifyResult formats verification result for display
func FormatVerifyResult(result *VerifyResult) string {
	var sb strings.Builder

	sb.WriteString("Certificate Verification Result\n")
	sb.WriteString("===============================\n\n")

	if result.Valid {
		sb.WriteString("Status: VALID\n")
	} else {
		sb.WriteString("Status: INVALID\n")
		sb.WriteString(fmt.Sprintf("Error: %s\n", result.Error))
	}

	sb.WriteString("\nCertificate Details:\n")
	sb.WriteString(fmt.Sprintf("  Role: %s\n", result.Role))
	sb.WriteString(fmt.Sprintf("  Subject: %s\n", result.Certificate.Subject))
	sb.WriteString(fmt.Sprintf("  Issuer: %s\n", result.Certificate.Issuer))
	sb.WriteString(fmt.Sprintf("  Serial: %s\n", result.Certificate.SerialNumber))
	sb.WriteString(fmt.Sprintf("  Valid From: %s\n", result.Certificate.NotBefore))
	sb.WriteString(fmt.Sprintf("  Valid Until: %s\n", result.Certificate.NotAfter))
	if len(result.Certificate.DNSNames) > 0 || len(result.Certificate.IPAddresses) > 0 {
		var names []string
		names = append(names, result.Certificate.DNSNames...)
		for _, ip := range result.Certificate.IPAddresses {
			names = append(names, ip.String())
		}
		sb.WriteString(fmt.Sprintf("  Hosts: %s\n", strings.Join(names, ", ")))
	}

	return sb.String()
}
