// Package netaddr draws IPv4 addresses from configured ranges.
package netaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/random"
)

var ErrInvalidRange = errors.New("invalid address range")

// DefaultDestinationRanges are CDN blocks used when a service has no ranges of its own.
var DefaultDestinationRanges = []string{
	"104.16.0.0/12",
	"172.64.0.0/13",
	"52.84.0.0/15",
	"13.224.0.0/14",
	"151.101.0.0/16",
	"172.217.0.0/16",
	"142.250.0.0/15",
}

const (
	// ServerReserve is the number of low host addresses kept back in internal subnets.
	ServerReserve = 10

	// destinationSpan bounds offsets into very large destination blocks.
	destinationSpan = 4096

	ephemeralPortLow  = 32768
	ephemeralPortHigh = 65535
)

// Range is one IPv4 prefix. Draws never return the network or broadcast address.
type Range struct {
	prefix netip.Prefix
	base   uint32
	first  uint32 // first usable offset
	last   uint32 // last usable offset
}

// NewRange parses cidr. reserveLow skips that many low hosts when the range can afford it.
func NewRange(cidr string, reserveLow int) (*Range, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRange, cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%w: %q is not IPv4", ErrInvalidRange, cidr)
	}
	prefix = prefix.Masked()

	bits := prefix.Bits()
	r := &Range{
		prefix: prefix,
		base:   toUint32(prefix.Addr()),
	}

	if bits >= 31 {
		// point-to-point and host routes have no network/broadcast pair
		return r, nil
	}

	size := uint64(1) << (32 - bits)
	r.first = 1
	r.last = uint32(size - 2)
	if reserveLow > 0 && uint64(reserveLow) < uint64(r.last)/2 {
		r.first = uint32(reserveLow) + 1
	}
	return r, nil
}

// MustRange is NewRange for built-in tables.
func MustRange(cidr string, reserveLow int) *Range {
	r, err := NewRange(cidr, reserveLow)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Range) Prefix() netip.Prefix {
	return r.prefix
}

// Contains reports whether addr is a usable host of the range.
func (r *Range) Contains(addr netip.Addr) bool {
	if !r.prefix.Contains(addr) {
		return false
	}
	offset := toUint32(addr) - r.base
	return offset >= r.first && offset <= r.last
}

// Random draws a usable host address.
func (r *Range) Random(src *random.Source) netip.Addr {
	return r.randomWithin(src, 0)
}

func (r *Range) randomWithin(src *random.Source, span uint32) netip.Addr {
	last := r.last
	if span > 0 && last-r.first+1 > span {
		last = r.first + span - 1
	}
	offset := r.first + uint32(src.Int64Range(int64(0), int64(last-r.first)))
	return fromUint32(r.base + offset)
}

// Pool draws from one of several ranges chosen uniformly.
type Pool struct {
	ranges []*Range
	span   uint32
}

func NewPool(cidrs []string, reserveLow int) (*Pool, error) {
	pool := &Pool{}
	for _, cidr := range cidrs {
		r, err := NewRange(cidr, reserveLow)
		if err != nil {
			return nil, err
		}
		pool.ranges = append(pool.ranges, r)
	}
	return pool, nil
}

func (p *Pool) Empty() bool {
	return p == nil || len(p.ranges) == 0
}

func (p *Pool) Random(src *random.Source) netip.Addr {
	return random.Choice(src, p.ranges).randomWithin(src, p.span)
}

func (p *Pool) Contains(addr netip.Addr) bool {
	for _, r := range p.ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// Allocator hands out the four address families a proxy log needs.
// It is read-only once built.
type Allocator struct {
	internal    *Pool
	vpn         *Pool
	egress      *Pool
	destination *Pool
	services    map[string]*Pool
}

type Options struct {
	Internal    []string
	VPN         []string
	Egress      []string
	Destination []string
	Services    []*model.CloudService
}

func NewAllocator(opts Options) (*Allocator, error) {
	if len(opts.Internal) == 0 {
		return nil, fmt.Errorf("%w: no internal subnets", ErrInvalidRange)
	}

	a := &Allocator{services: make(map[string]*Pool)}
	var err error

	if a.internal, err = NewPool(opts.Internal, ServerReserve); err != nil {
		return nil, fmt.Errorf("internal subnets: %w", err)
	}
	if a.vpn, err = NewPool(opts.VPN, 0); err != nil {
		return nil, fmt.Errorf("vpn subnets: %w", err)
	}
	if a.egress, err = NewPool(opts.Egress, 0); err != nil {
		return nil, fmt.Errorf("egress subnets: %w", err)
	}

	destinations := opts.Destination
	if len(destinations) == 0 {
		destinations = DefaultDestinationRanges
	}
	if a.destination, err = newDestinationPool(destinations); err != nil {
		return nil, fmt.Errorf("destination ranges: %w", err)
	}

	for _, svc := range opts.Services {
		if len(svc.DestinationRanges) == 0 {
			continue
		}
		pool, err := newDestinationPool(svc.DestinationRanges)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		a.services[svc.Name] = pool
	}

	return a, nil
}

func newDestinationPool(cidrs []string) (*Pool, error) {
	pool, err := NewPool(cidrs, 0)
	if err != nil {
		return nil, err
	}
	pool.span = destinationSpan
	return pool, nil
}

func (a *Allocator) Internal(src *random.Source) netip.Addr {
	return a.internal.Random(src)
}

// VPN falls back to an internal address when no VPN subnet is configured.
func (a *Allocator) VPN(src *random.Source) netip.Addr {
	if a.vpn.Empty() {
		return a.Internal(src)
	}
	return a.vpn.Random(src)
}

func (a *Allocator) HasVPN() bool {
	return !a.vpn.Empty()
}

// Egress returns the zero Addr when no egress range is configured.
func (a *Allocator) Egress(src *random.Source) netip.Addr {
	if a.egress.Empty() {
		return netip.Addr{}
	}
	return a.egress.Random(src)
}

// Destination prefers the service's own ranges. A nil service draws from the shared pool.
func (a *Allocator) Destination(src *random.Source, svc *model.CloudService) netip.Addr {
	if svc != nil {
		if pool, ok := a.services[svc.Name]; ok {
			return pool.Random(src)
		}
	}
	return a.destination.Random(src)
}

func (a *Allocator) SourcePort(src *random.Source) int {
	return src.IntRange(ephemeralPortLow, ephemeralPortHigh)
}

func toUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
