package dns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// RecordTypeA is the only record type managed.
const RecordTypeA = "A"

// BlankIP is returned by GetCurrent when the provider publishes no address
// for the domain. It never equals a usable machine address, so a domain
// without a record is always updated.
var BlankIP = netip.IPv4Unspecified()

var (
	// ErrAmbiguousRecordSet is returned when a domain has more than one A value.
	ErrAmbiguousRecordSet = errors.New("record set has multiple values")
	// ErrMalformedRecord is returned when a published value is not an IPv4 address.
	ErrMalformedRecord = errors.New("malformed record data")
)

// Provider is the interface that DNS providers must implement. An instance is
// bound to a single domain and backend configuration.
type Provider interface {
	// GetCurrent returns the IPv4 address currently published for the domain,
	// or BlankIP when nothing is published.
	GetCurrent(ctx context.Context) (netip.Addr, error)
	// UpdateDNSRecord upserts the domain's A record to ip. Calling it again
	// with the same address leaves the record unchanged.
	UpdateDNSRecord(ctx context.Context, ip netip.Addr) error
}

// CurrentFromRecordData decodes the values of a domain's A record set.
// An empty set yields BlankIP; more than one value is ambiguous and not guessed at.
func CurrentFromRecordData(values []string) (netip.Addr, error) {
	switch len(values) {
	case 0:
		return BlankIP, nil
	case 1:
		addr, err := netip.ParseAddr(values[0])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, values[0], err)
		}
		if !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("%w: %q is not an IPv4 address", ErrMalformedRecord, values[0])
		}
		return addr, nil
	default:
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrAmbiguousRecordSet, values)
	}
}

// QueryError reports a failure to read the published address of a domain.
type QueryError struct {
	Domain string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("querying current record for %s: %v", e.Domain, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// UpdateError reports a failed upsert of a domain's record.
type UpdateError struct {
	Domain string
	IP     netip.Addr
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("updating record for %s to %s: %v", e.Domain, e.IP, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
