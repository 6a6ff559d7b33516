package domain

// Product is read-only from this system's perspective; the catalog/pricing
// subsystem that owns it is external.
type Product struct {
	ID            int64
	SubID         string
	StoreSubID    string
	PriceCurrency string
	HasAnticheat  bool
}

// EffectiveSubID returns SubID, falling back to StoreSubID when SubID is
// empty.
func (p *Product) EffectiveSubID() string {
	if p.SubID != "" {
		return p.SubID
	}
	return p.StoreSubID
}
