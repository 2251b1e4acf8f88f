package security

import "context"

// Block blacklists ip for the configured lockout duration and records a
// high-severity event. The monitor sweeps the key once it expires.
func (s *Service) Block(ctx context.Context, ip, reason string) error {
	if err := s.keys.Set(ctx, BlacklistKey(ip), reason, s.cfg.LockoutDuration); err != nil {
		return err
	}
	s.LogEvent(ctx, "ip_blacklisted", SeverityHigh, map[string]any{
		"ip":       ip,
		"reason":   reason,
		"duration": s.cfg.LockoutDuration.String(),
	})
	return nil
}

// Blocked reports whether ip is currently blacklisted. Expired entries that
// the monitor has not swept yet do not count.
func (s *Service) Blocked(ctx context.Context, ip string) (bool, error) {
	ttl, err := s.keys.TTL(ctx, BlacklistKey(ip))
	if err != nil {
		return false, err
	}
	return ttl > 0, nil
}
