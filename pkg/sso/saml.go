package sso

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
)

// SAMLProvider implements SAML 2.0 sign-in against one IdP.
type SAMLProvider struct {
	cfg     *Config
	sp      *saml2.SAMLServiceProvider
	baseURL string
}

// NewSAMLProvider creates a SAML provider. The IdP certificate is read
// from cfg.SAML.CertificatePath; call again after a certificate
// rotation to get a provider trusting the new material.
func NewSAMLProvider(cfg *Config, baseURL string) (*SAMLProvider, error) {
	if cfg.SAML == nil {
		return nil, fmt.Errorf("provider %q: saml section is required", cfg.Name)
	}

	certPEM, err := os.ReadFile(cfg.SAML.CertificatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read idp certificate: %w", err)
	}

	certStore, err := buildCertStore(certPEM)
	if err != nil {
		return nil, err
	}

	var keyStore dsig.X509KeyStore
	if cfg.SAML.KeyPath != "" {
		keyPEM, err := os.ReadFile(cfg.SAML.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read sp key: %w", err)
		}
		keyStore, err = buildKeyStore(keyPEM, certPEM)
		if err != nil {
			return nil, err
		}
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.SAML.SSOURL,
		IdentityProviderIssuer:      cfg.SAML.EntityID,
		ServiceProviderIssuer:       baseURL + "/auth/sso/metadata/" + cfg.Name,
		AssertionConsumerServiceURL: baseURL + "/auth/sso/" + cfg.Name + "/callback",
		SignAuthnRequests:           cfg.SAML.SignRequests,
		AudienceURI:                 baseURL,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  keyStore,
	}
	if cfg.SAML.NameIDFormat != "" {
		sp.NameIdFormat = cfg.SAML.NameIDFormat
	}

	return &SAMLProvider{
		cfg:     cfg,
		sp:      sp,
		baseURL: baseURL,
	}, nil
}

func buildCertStore(certPEM []byte) (*dsig.MemoryX509CertificateStore, error) {
	store := &dsig.MemoryX509CertificateStore{}

	// A metadata bundle may carry several certificates; trust them all
	// so rotation overlap windows keep working.
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse idp certificate: %w", err)
		}
		store.Roots = append(store.Roots, cert)
	}
	if len(store.Roots) == 0 {
		return nil, fmt.Errorf("no certificate found in idp certificate PEM")
	}
	return store, nil
}

func buildKeyStore(keyPEM, certPEM []byte) (dsig.X509KeyStore, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode sp key PEM")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sp key: %w", err)
		}
		var ok bool
		privateKey, ok = pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("sp key is not RSA")
		}
	}

	return &dsig.TLSCertKeyStore{
		PrivateKey:  privateKey,
		Certificate: [][]byte{certPEM},
	}, nil
}

// Name returns the registry name.
func (p *SAMLProvider) Name() string { return p.cfg.Name }

// Type returns ProviderTypeSAML.
func (p *SAMLProvider) Type() ProviderType { return ProviderTypeSAML }

// InitiateLogin redirects the browser to the IdP with state as relay
// state.
func (p *SAMLProvider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	authURL, err := p.sp.BuildAuthURL(state)
	if err != nil {
		return fmt.Errorf("failed to build auth URL: %w", err)
	}

	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// HandleCallback validates the posted SAML assertion and returns the
// asserted principal. Assertions outside their validity window or
// addressed to a different audience are rejected.
func (p *SAMLProvider) HandleCallback(w http.ResponseWriter, r *http.Request) (*Principal, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	samlResponse := r.FormValue("SAMLResponse")
	if samlResponse == "" {
		return nil, fmt.Errorf("missing SAMLResponse parameter")
	}

	assertionBytes, err := base64.StdEncoding.DecodeString(samlResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SAMLResponse: %w", err)
	}

	assertionInfo, err := p.sp.RetrieveAssertionInfo(string(assertionBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to validate assertion: %w", err)
	}

	if assertionInfo.WarningInfo != nil {
		if assertionInfo.WarningInfo.InvalidTime {
			return nil, fmt.Errorf("assertion outside its validity window")
		}
		if assertionInfo.WarningInfo.NotInAudience {
			return nil, fmt.Errorf("assertion not addressed to this audience")
		}
	}

	raw := make(map[string][]string, len(assertionInfo.Values))
	for _, attr := range assertionInfo.Values {
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v.Value)
		}
		raw[attr.Name] = values
	}

	principal := principalFromAttributes(NormalizeAttributes(raw), p.cfg)
	principal.SessionIndex = assertionInfo.SessionIndex
	if principal.ExternalID == "" {
		principal.ExternalID = assertionInfo.NameID
	}
	if principal.Email == "" {
		return nil, ErrMissingEmail
	}

	return principal, nil
}

// Logout redirects to the IdP's single logout endpoint when one is
// configured; otherwise logout is local-only.
func (p *SAMLProvider) Logout(w http.ResponseWriter, r *http.Request, sessionIndex string) error {
	if p.cfg.SAML.SLOURL == "" {
		return nil
	}

	logoutRequestXML := fmt.Sprintf(`<?xml version="1.0"?>
<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
                     xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
                     ID="_%s"
                     Version="2.0"
                     IssueInstant="%s"
                     Destination="%s">
  <saml:Issuer>%s</saml:Issuer>
  <saml:NameID Format="urn:oasis:names:tc:SAML:2.0:nameid-format:transient"></saml:NameID>
  <samlp:SessionIndex>%s</samlp:SessionIndex>
</samlp:LogoutRequest>`,
		generateRequestID(),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		p.cfg.SAML.SLOURL,
		p.sp.ServiceProviderIssuer,
		sessionIndex)

	logoutURL, err := url.Parse(p.cfg.SAML.SLOURL)
	if err != nil {
		return fmt.Errorf("invalid SLO URL: %w", err)
	}

	query := logoutURL.Query()
	query.Set("SAMLRequest", base64.StdEncoding.EncodeToString([]byte(logoutRequestXML)))
	logoutURL.RawQuery = query.Encode()

	http.Redirect(w, r, logoutURL.String(), http.StatusFound)
	return nil
}

// Validate checks the SAML configuration and certificate material.
func (p *SAMLProvider) Validate() error {
	cfg := p.cfg.SAML
	if cfg == nil {
		return fmt.Errorf("saml section is required")
	}
	if cfg.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if cfg.SSOURL == "" {
		return fmt.Errorf("sso_url is required")
	}
	if cfg.CertificatePath == "" {
		return fmt.Errorf("certificate_path is required")
	}

	certPEM, err := os.ReadFile(cfg.CertificatePath)
	if err != nil {
		return fmt.Errorf("failed to read idp certificate: %w", err)
	}
	if _, err := buildCertStore(certPEM); err != nil {
		return err
	}

	if cfg.SignRequests && cfg.KeyPath == "" {
		return fmt.Errorf("key_path is required when sign_requests is set")
	}
	return nil
}

// Metadata returns the service provider metadata XML for IdP-side
// registration.
func (p *SAMLProvider) Metadata() ([]byte, error) {
	metadataXML := fmt.Sprintf(`<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
                     entityID="%s">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
                                 Location="%s"
                                 index="1"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`,
		p.sp.ServiceProviderIssuer,
		p.sp.AssertionConsumerServiceURL)

	return []byte(metadataXML), nil
}

func generateRequestID() string {
	b := make([]byte, 20)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// principalFromAttributes maps normalized attributes onto a Principal
// using the provider's attribute mapping. Absent attributes map to
// empty fields; nothing here can panic on ragged payloads.
func principalFromAttributes(attrs map[string]AttributeValue, cfg *Config) *Principal {
	p := &Principal{
		Provider:    cfg.Name,
		Attributes:  attrs,
		Email:       lookup(attrs, cfg.AttributeMapping.Email).First(),
		DisplayName: lookup(attrs, cfg.AttributeMapping.DisplayName).First(),
		FirstName:   lookup(attrs, cfg.AttributeMapping.FirstName).First(),
		LastName:    lookup(attrs, cfg.AttributeMapping.LastName).First(),
	}
	if p.DisplayName == "" && p.FirstName != "" && p.LastName != "" {
		p.DisplayName = p.FirstName + " " + p.LastName
	}
	return p
}
