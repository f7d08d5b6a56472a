package peer

import (
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/pion/webrtc/v4"
)

// ICEServers builds the STUN and TURN server list from cfg.
func ICEServers(cfg *config.Config) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	if turn := cfg.GetTURNServers(); len(turn) > 0 {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

// TransportPolicy forces relay-only candidates when TURN is configured and
// either the user asked for it or restricted reports a VPN/CGNAT host.
func TransportPolicy(cfg *config.Config, restricted func() bool) webrtc.ICETransportPolicy {
	if len(cfg.GetTURNServers()) == 0 {
		return webrtc.ICETransportPolicyAll
	}
	if cfg.ForceRelay || (restricted != nil && restricted()) {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

// Configuration is the PeerConnection configuration for cfg.
func Configuration(cfg *config.Config) webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers:         ICEServers(cfg),
		ICETransportPolicy: TransportPolicy(cfg, RestrictedNetwork),
	}
}
