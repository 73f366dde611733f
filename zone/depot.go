package zone

// depot FIFO of full magazines, protected by zone lock.
type depot struct {
	mags []*magazine
	max  int
}

func (d *depot) length() int {
	return len(d.mags)
}

// withdraw oldest magazine, nil if depot is empty.
func (d *depot) withdraw() *magazine {
	if len(d.mags) == 0 {
		return nil
	}
	mag := d.mags[0]
	copy(d.mags, d.mags[1:])
	d.mags[len(d.mags)-1] = nil
	d.mags = d.mags[:len(d.mags)-1]
	return mag
}

// deposit a full magazine into depot, zone lock must be held. If
// depot overflows its bound, oldest magazines are folded back into
// chunks.
func (z *Zone) deposit(mag *magazine) {
	if !mag.full() {
		panicerr("zone %q: depositing partial magazine %v", z.name, mag.count)
	}
	z.depot.mags = append(z.depot.mags, mag)
	for len(z.depot.mags) > z.depot.max {
		oldest := z.depot.withdraw()
		z.foldmagazine(oldest)
		z.putmag(oldest)
		z.ndepotfolds++
	}
}
