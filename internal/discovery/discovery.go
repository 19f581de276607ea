package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"mm-swarm/internal/models"
)

var (
	ErrPortCollision  = errors.New("port collision")
	ErrNoLANInterface = errors.New("no LAN or WiFi interface with an IPv4 address")
)

// PortRule computes base + ordinal*stride for one logical port.
type PortRule struct {
	Name   models.PortName
	Base   int
	Stride int
}

// PortPlan is the ordered list of logical ports given to every instance.
type PortPlan []PortRule

// DefaultPlan is the port layout published by every mm-swarm container.
var DefaultPlan = PortPlan{
	{Name: models.PortMM, Base: 8080, Stride: 1},
	{Name: models.PortMMPMUI, Base: 7890, Stride: 4},
	{Name: models.PortMMPMAPI, Base: 7891, Stride: 4},
	{Name: models.PortMMPMLog, Base: 6789, Stride: 4},
	{Name: models.PortMMPMRepeater, Base: 8907, Stride: 4},
}

// Assign returns the ports of the instance at ordinal.
func (p PortPlan) Assign(ordinal int) map[models.PortName]int {
	ports := make(map[models.PortName]int, len(p))
	for _, r := range p {
		ports[r.Name] = r.Base + ordinal*r.Stride
	}
	return ports
}

/**
 * Verify no port number is handed out twice
 * @param {int} count - Number of instances
 * @returns {error} ErrPortCollision naming both owners
 * @description
 * - Checks every (ordinal, logical port) pair against all others
 * - DefaultPlan holds up to 48 instances, the 49th mmpm_ui port lands in the mm range
 */
func (p PortPlan) Validate(count int) error {
	type owner struct {
		ordinal int
		name    models.PortName
	}
	seen := make(map[int]owner, count*len(p))
	for i := 0; i < count; i++ {
		for _, r := range p {
			port := r.Base + i*r.Stride
			if port <= 0 || port > 65535 {
				return fmt.Errorf("%w: instance %d %s=%d is out of range", ErrPortCollision, i, r.Name, port)
			}
			if prev, ok := seen[port]; ok {
				return fmt.Errorf("%w: port %d used by instance %d (%s) and instance %d (%s)",
					ErrPortCollision, port, prev.ordinal, prev.name, i, r.Name)
			}
			seen[port] = owner{ordinal: i, name: r.Name}
		}
	}
	return nil
}

// Order selects how instance directories are ranked before ordinals are assigned.
type Order string

const (
	// OrderLexical sorts names, stable across filesystems.
	OrderLexical Order = "lexical"
	// OrderListing keeps the raw directory listing order of earlier releases.
	OrderListing Order = "listing"
)

/**
 * Discovery options
 * @property {PortPlan} Plan - Port layout, DefaultPlan when nil
 * @property {string} BoundIP - Address recorded on every instance
 * @property {Order} Order - Ordinal assignment order, lexical when empty
 */
type Options struct {
	Plan    PortPlan
	BoundIP string
	Order   Order
}

/**
 * Discover the instances under root
 * @param {string} root - Folder whose immediate subdirectories are instances
 * @param {Options} opts - Port plan, bound address and ordering
 * @returns {[]models.Instance} Instances in ordinal order
 * @returns {error} Listing failure or port collision
 * @description
 * - Hidden directories and plain files are skipped
 * - A missing root yields no instances
 */
func Discover(root string, opts Options) ([]models.Instance, error) {
	plan := opts.Plan
	if plan == nil {
		plan = DefaultPlan
	}
	names, err := listInstanceDirs(root, opts.Order)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(len(names)); err != nil {
		return nil, err
	}

	instances := make([]models.Instance, 0, len(names))
	for i, name := range names {
		instances = append(instances, models.Instance{
			Name:    name,
			Ordinal: i,
			Ports:   plan.Assign(i),
			BoundIP: opts.BoundIP,
		})
	}
	return instances, nil
}

func listInstanceDirs(root string, order Order) ([]string, error) {
	dir, err := os.Open(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open instances dir %s: %w", root, err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("list instances in %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	if order != OrderListing {
		sort.Strings(names)
	}
	return names, nil
}

// Renumbered returns the names of listing whose ordinal changes once the listing is sorted.
func Renumbered(listing []string) []string {
	sorted := append([]string(nil), listing...)
	sort.Strings(sorted)
	var moved []string
	for i, name := range listing {
		if sorted[i] != name {
			moved = append(moved, name)
		}
	}
	return moved
}

// ListingDrift reports the instances under root that OrderLexical numbers differently from OrderListing.
func ListingDrift(root string) ([]string, error) {
	names, err := listInstanceDirs(root, OrderListing)
	if err != nil {
		return nil, err
	}
	return Renumbered(names), nil
}

// Candidate is an interface address eligible for binding.
type Candidate struct {
	Interface string
	Address   string
}

var lanPrefixes = []string{"eth", "wlan", "en", "wl"}

func isLANInterface(name string) bool {
	for _, p := range lanPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

/**
 * Pick the candidate to bind
 * @param {[]Candidate} candidates - Eligible addresses
 * @returns {Candidate} First by (3-char name prefix, full name)
 * @returns {error} ErrNoLANInterface when empty
 */
func SelectCandidate(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoLANInterface
	}
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := prefix3(sorted[i].Interface), prefix3(sorted[j].Interface)
		if pi != pj {
			return pi < pj
		}
		return sorted[i].Interface < sorted[j].Interface
	})
	return sorted[0], nil
}

func prefix3(s string) string {
	if len(s) > 3 {
		return s[:3]
	}
	return s
}

// Candidates lists the non-loopback IPv4 addresses of LAN and WiFi interfaces.
func Candidates() ([]Candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []Candidate
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || !isLANInterface(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				out = append(out, Candidate{Interface: iface.Name, Address: ip4.String()})
				break
			}
		}
	}
	return out, nil
}

// BoundAddress resolves the LAN address instances are published on.
func BoundAddress() (Candidate, error) {
	candidates, err := Candidates()
	if err != nil {
		return Candidate{}, err
	}
	return SelectCandidate(candidates)
}
