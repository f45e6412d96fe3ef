package kvm

import (
	"strings"
	"time"

	libvirt "github.com/digitalocean/go-libvirt"
)

// waitForIP polls domain interface addresses, falling back to the network's
// DHCP lease table, until macAddress resolves to an IPv4 address or
// maxAttempts is exhausted (one attempt every 3s). Returns "" if the VM
// never picks up a lease in time, which the caller treats as a launch
// failure rather than an error.
func waitForIP(vir *libvirt.Libvirt, dom libvirt.Domain, networkName, macAddress string, maxAttempts int) string {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ip := domainInterfaceIP(vir, dom); ip != "" {
			return ip
		}
		if ip, err := dhcpLeaseFor(vir, networkName, macAddress); err == nil && ip != "" {
			return ip
		}
		time.Sleep(3 * time.Second)
	}
	return ""
}

func domainInterfaceIP(vir *libvirt.Libvirt, dom libvirt.Domain) string {
	interfaces, err := vir.DomainInterfaceAddresses(dom, uint32(libvirt.DomainInterfaceAddressesSrcLease), 0)
	if err != nil {
		return ""
	}
	for _, iface := range interfaces {
		for _, addr := range iface.Addrs {
			if libvirt.IPAddrType(addr.Type) == libvirt.IPAddrTypeIpv4 {
				return addr.Addr
			}
		}
	}
	return ""
}

// dhcpLeaseFor retrieves the IP libvirt's DHCP server handed out to
// macAddress on networkName.
func dhcpLeaseFor(vir *libvirt.Libvirt, networkName, macAddress string) (string, error) {
	network, err := vir.NetworkLookupByName(networkName)
	if err != nil {
		return "", err
	}
	leases, _, err := vir.NetworkGetDhcpLeases(network, libvirt.OptString{}, 0, 0)
	if err != nil {
		return "", err
	}
	for _, lease := range leases {
		for _, mac := range lease.Mac {
			if mac != "" && strings.EqualFold(mac, macAddress) {
				return lease.Ipaddr, nil
			}
		}
	}
	return "", nil
}
