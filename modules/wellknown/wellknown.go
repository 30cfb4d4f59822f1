// Package wellknown provides the built-in Windows principals as shared Sid
// values.
package wellknown

import (
	"fmt"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
	"github.com/lkarlslund/winsec/modules/winsec"
)

// https://support.microsoft.com/en-us/help/243330/well-known-security-identifiers-in-windows-operating-systems
const (
	Null               = "S-1-0-0"
	Everyone           = "S-1-1-0"
	CreatorOwner       = "S-1-3-0"
	CreatorGroup       = "S-1-3-1"
	Dialup             = "S-1-5-1"
	Network            = "S-1-5-2"
	Batch              = "S-1-5-3"
	Interactive        = "S-1-5-4"
	Service            = "S-1-5-6"
	Anonymous          = "S-1-5-7"
	AuthenticatedUsers = "S-1-5-11"
	Self               = "S-1-5-10"
	LocalSystem        = "S-1-5-18"
	LocalService       = "S-1-5-19"
	NetworkService     = "S-1-5-20"
	Administrators     = "S-1-5-32-544"
	Users              = "S-1-5-32-545"
	Guests             = "S-1-5-32-546"
	PowerUsers         = "S-1-5-32-547"
	AccountOperators   = "S-1-5-32-548"
	ServerOperators    = "S-1-5-32-549"
	PrintOperators     = "S-1-5-32-550"
	BackupOperators    = "S-1-5-32-551"
	Replicators        = "S-1-5-32-552"
	NTLMAuthentication = "S-1-5-64-10"
	AllServices        = "S-1-5-80-0"
)

var names = map[string]string{
	Null:               "Null",
	Everyone:           "Everyone",
	CreatorOwner:       "Creator Owner",
	CreatorGroup:       "Creator Group",
	Dialup:             "Dialup",
	Network:            "Network",
	Batch:              "Batch",
	Interactive:        "Interactive",
	Service:            "Service",
	Anonymous:          "Anonymous",
	Self:               "Self",
	AuthenticatedUsers: "Authenticated Users",
	LocalSystem:        "Local System",
	LocalService:       "Local Service",
	NetworkService:     "Network Service",
	Administrators:     "Administrators",
	Users:              "Users",
	Guests:             "Guests",
	PowerUsers:         "Power Users",
	AccountOperators:   "Account Operators",
	ServerOperators:    "Server Operators",
	PrintOperators:     "Print Operators",
	BackupOperators:    "Backup Operators",
	Replicators:        "Replicators",
	NTLMAuthentication: "NTLM Authentication",
	AllServices:        "All Services",
}

// Name returns the friendly name for a canonical SID string, or the input
// itself when it is not a well-known principal.
func Name(stringSid string) string {
	if name, found := names[stringSid]; found {
		return name
	}
	return stringSid
}

var cache gsync.MapOf[string, *winsec.Sid]

// Sid returns the shared Sid for a canonical string form, allocating it
// against the platform subsystem on first use. The result is shared across
// callers and must not be freed.
func Sid(stringSid string) (*winsec.Sid, error) {
	if cached, found := cache.Load(stringSid); found {
		return cached, nil
	}
	idAuth, subAuths, err := winsec.ParseStringSid(stringSid)
	if err != nil {
		return nil, err
	}
	sid, err := winsec.NewSid(winsec.Native(), idAuth, subAuths...)
	if err != nil {
		return nil, err
	}
	cached, loaded := cache.LoadOrStore(stringSid, sid)
	if loaded {
		// lost the race, keep the stored one
		sid.Free()
	}
	return cached, nil
}

// MustSid is Sid for the package-level constants, where failure to allocate
// a well-known principal means something is deeply wrong.
func MustSid(stringSid string) *winsec.Sid {
	sid, err := Sid(stringSid)
	if err != nil {
		panic(fmt.Sprintf("well-known SID %v: %v", stringSid, err))
	}
	return sid
}
