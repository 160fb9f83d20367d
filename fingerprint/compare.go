package fingerprint

// Zone boundaries in frames from the window center, at the 20 ms snapshot
// rate: 0-0.5 s, 0.5-2 s, 2-5 s.
const (
	zoneNearFrames = 25
	zoneMidFrames  = 100

	// Worst case per-pair distance: all 24 bits differ, cubed.
	maxCubedDistance = 24 * 24 * 24

	// Fraction of the shorter fingerprint tried as alignment slack.
	maxLagFraction = 0.2
)

// Zone weights. The center of the window matters less than its body: a loop
// seam is judged by how the surrounding seconds line up, not by the single
// frame at the splice.
var zoneWeights = [3]float64{0.2, 0.4, 0.4}

// popcountTable holds per-byte bit counts. A 32-bit popcount is four table
// lookups; this sits inside the O(lags x frames) comparison inner loop.
var popcountTable = buildPopcountTable()

func buildPopcountTable() [256]uint8 {
	var table [256]uint8
	for i := 1; i < 256; i++ {
		table[i] = table[i>>1] + uint8(i&1)
	}
	return table
}

// popcount counts set bits via the byte lookup table.
func popcount(x uint32) int {
	return int(popcountTable[x&0xff]) +
		int(popcountTable[(x>>8)&0xff]) +
		int(popcountTable[(x>>16)&0xff]) +
		int(popcountTable[(x>>24)&0xff])
}

// Match is the outcome of comparing two fingerprints: a similarity score in
// [0, 1] and the frame lag of B relative to A that maximized it.
type Match struct {
	Score  float64 `json:"score"`
	Offset int     `json:"offset"`
}

// Compare scores two fingerprints over every integer lag within the
// alignment slack and returns the best. Per-pair distance is the cubed
// popcount of the XOR of the codes; cubing rewards near-identical frames
// far more than moderate similarity. Pairs are averaged per zone by
// distance from the window center, then combined with the zone weights
// (zones with no frames contribute 0, so sparse edge windows are not
// penalized disproportionately).
func Compare(a, b *Fingerprint) Match {
	if a == nil || b == nil || len(a.Codes) == 0 || len(b.Codes) == 0 {
		return Match{}
	}

	shorter := min(len(a.Codes), len(b.Codes))
	maxLag := int(maxLagFraction * float64(shorter))

	best := Match{Score: -1}
	for lag := -maxLag; lag <= maxLag; lag++ {
		score := scoreAtLag(a, b, lag)
		if score > best.Score {
			best = Match{Score: score, Offset: lag}
		}
	}
	return best
}

// scoreAtLag computes the zone-weighted similarity for one alignment. Zones
// are measured from the center of the overlap region, which makes the score
// exactly symmetric: scoreAtLag(a, b, lag) == scoreAtLag(b, a, -lag).
func scoreAtLag(a, b *Fingerprint, lag int) float64 {
	start := 0
	if lag < 0 {
		start = -lag
	}
	end := len(a.Codes)
	if len(b.Codes)-lag < end {
		end = len(b.Codes) - lag
	}
	if end <= start {
		return 0
	}
	center := (end - start) / 2

	var zoneSum [3]float64
	var zoneCount [3]int

	for i := start; i < end; i++ {
		d := popcount(a.Codes[i] ^ b.Codes[i+lag])
		cubed := float64(d * d * d)

		dist := (i - start) - center
		if dist < 0 {
			dist = -dist
		}
		zone := 2
		if dist < zoneNearFrames {
			zone = 0
		} else if dist < zoneMidFrames {
			zone = 1
		}
		zoneSum[zone] += cubed
		zoneCount[zone]++
	}

	total := zoneCount[0] + zoneCount[1] + zoneCount[2]
	if total == 0 {
		return 0
	}

	avgDistance := 0.0
	for z := range zoneWeights {
		if zoneCount[z] > 0 {
			avgDistance += zoneWeights[z] * zoneSum[z] / float64(zoneCount[z])
		}
	}

	return 1 - avgDistance/maxCubedDistance
}
