package fixtures

import (
	"encoding/json"
	"fmt"
)

// Keycloak realm export shape, the subset start-dev --import-realm reads.

type realmExport struct {
	Realm       string        `json:"realm"`
	DisplayName string        `json:"displayName,omitempty"`
	Enabled     bool          `json:"enabled"`
	Roles       realmRoles    `json:"roles"`
	Clients     []realmClient `json:"clients"`
	Users       []realmUser   `json:"users"`
}

type realmRoles struct {
	Realm []realmRole `json:"realm"`
}

type realmRole struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type realmClient struct {
	ClientID                  string   `json:"clientId"`
	Enabled                   bool     `json:"enabled"`
	Protocol                  string   `json:"protocol"`
	PublicClient              bool     `json:"publicClient"`
	BearerOnly                bool     `json:"bearerOnly,omitempty"`
	Secret                    string   `json:"secret,omitempty"`
	StandardFlowEnabled       bool     `json:"standardFlowEnabled"`
	DirectAccessGrantsEnabled bool     `json:"directAccessGrantsEnabled"`
	RedirectURIs              []string `json:"redirectUris,omitempty"`
	WebOrigins                []string `json:"webOrigins,omitempty"`
}

type realmUser struct {
	Username    string            `json:"username"`
	Enabled     bool              `json:"enabled"`
	FirstName   string            `json:"firstName,omitempty"`
	LastName    string            `json:"lastName,omitempty"`
	Email       string            `json:"email,omitempty"`
	Credentials []realmCredential `json:"credentials"`
	RealmRoles  []string          `json:"realmRoles,omitempty"`
}

type realmCredential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// realmJSON renders the banking realm keycloak imports on first boot: the
// API as a bearer-only resource, the gateway as the browser-facing client,
// and two demo accounts.
func realmJSON() (string, error) {
	export := realmExport{
		Realm:       "banking",
		DisplayName: "BankOps Banking",
		Enabled:     true,
		Roles: realmRoles{
			Realm: []realmRole{
				{Name: "customer", Description: "Retail banking customer"},
				{Name: "advisor", Description: "Branch advisor"},
				{Name: "admin", Description: "Platform administrator"},
			},
		},
		Clients: []realmClient{
			{
				ClientID:   "banking-api",
				Enabled:    true,
				Protocol:   "openid-connect",
				BearerOnly: true,
			},
			{
				ClientID:                  "api-gateway",
				Enabled:                   true,
				Protocol:                  "openid-connect",
				PublicClient:              false,
				Secret:                    "gateway-local-secret",
				StandardFlowEnabled:       true,
				DirectAccessGrantsEnabled: true,
				RedirectURIs:              []string{"http://localhost:8090/*"},
				WebOrigins:                []string{"http://localhost:8090"},
			},
		},
		Users: []realmUser{
			{
				Username:  "demo.customer",
				Enabled:   true,
				FirstName: "Ana",
				LastName:  "Soares",
				Email:     "ana.soares@bankops.example",
				Credentials: []realmCredential{
					{Type: "password", Value: "demo", Temporary: false},
				},
				RealmRoles: []string{"customer"},
			},
			{
				Username:  "demo.advisor",
				Enabled:   true,
				FirstName: "Rui",
				LastName:  "Tavares",
				Email:     "rui.tavares@bankops.example",
				Credentials: []realmCredential{
					{Type: "password", Value: "demo", Temporary: false},
				},
				RealmRoles: []string{"advisor", "admin"},
			},
		},
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal realm export: %w", err)
	}
	return string(data) + "\n", nil
}

// bootstrapLDIF renders the directory entries the openldap container loads
// at first boot. The base DN comes from the container's LDAP_DOMAIN.
func bootstrapLDIF() string {
	return `dn: ou=people,dc=bankops,dc=example
objectClass: organizationalUnit
ou: people

dn: ou=groups,dc=bankops,dc=example
objectClass: organizationalUnit
ou: groups

dn: uid=asoares,ou=people,dc=bankops,dc=example
objectClass: inetOrgPerson
uid: asoares
cn: Ana Soares
sn: Soares
mail: ana.soares@bankops.example
userPassword: changeit

dn: uid=rtavares,ou=people,dc=bankops,dc=example
objectClass: inetOrgPerson
uid: rtavares
cn: Rui Tavares
sn: Tavares
mail: rui.tavares@bankops.example
userPassword: changeit

dn: cn=advisors,ou=groups,dc=bankops,dc=example
objectClass: groupOfNames
cn: advisors
member: uid=rtavares,ou=people,dc=bankops,dc=example

dn: cn=customers,ou=groups,dc=bankops,dc=example
objectClass: groupOfNames
cn: customers
member: uid=asoares,ou=people,dc=bankops,dc=example
`
}
