package playlist

import (
	"math"

	"github.com/google/btree"

	"adsift/atypes"
)

const FRAME_RATE_TOLERANCE = 2.0

type ladderItem struct {
	meta atypes.VariantMeta
}

func (li *ladderItem) Less(rhs btree.Item) bool {
	r := rhs.(*ladderItem)
	if li.meta.Resolution.Height != r.meta.Resolution.Height {
		return li.meta.Resolution.Height < r.meta.Resolution.Height
	}
	if li.meta.FrameRate != r.meta.FrameRate {
		return li.meta.FrameRate < r.meta.FrameRate
	}
	return li.meta.Bandwidth < r.meta.Bandwidth
}

type Ladder struct {
	tree *btree.BTree
}

func NewLadder(metas []atypes.VariantMeta) *Ladder {
	ladder := &Ladder{tree: btree.New(2)}
	for _, meta := range metas {
		ladder.tree.ReplaceOrInsert(&ladderItem{meta: meta})
	}
	return ladder
}

func (l *Ladder) Len() int {
	return l.tree.Len()
}

func (l *Ladder) Closest(target atypes.Resolution, frameRate float64) (atypes.VariantMeta, bool) {
	if l.tree.Len() == 0 {
		return atypes.VariantMeta{}, false
	}
	var exact, sameRes, lower atypes.VariantMeta
	var haveExact, haveSameRes, haveLower bool
	l.tree.Descend(func(item btree.Item) bool {
		meta := item.(*ladderItem).meta
		if meta.Resolution == target {
			if frameRate == 0 || math.Abs(meta.FrameRate-frameRate) < FRAME_RATE_TOLERANCE {
				exact = meta
				haveExact = true
				return false
			}
			if !haveSameRes {
				sameRes = meta
				haveSameRes = true
			}
		}
		if !haveLower && meta.Resolution.Height < target.Height {
			lower = meta
			haveLower = true
		}
		return true
	})
	if haveExact {
		return exact, true
	}
	if haveSameRes {
		return sameRes, true
	}
	if haveLower {
		return lower, true
	}
	return l.lowest()
}

func (l *Ladder) ByHeight(height int) (atypes.VariantMeta, bool) {
	if l.tree.Len() == 0 {
		return atypes.VariantMeta{}, false
	}
	var exact, lower atypes.VariantMeta
	var haveExact, haveLower bool
	l.tree.Descend(func(item btree.Item) bool {
		meta := item.(*ladderItem).meta
		if meta.Resolution.Height == height {
			exact = meta
			haveExact = true
			return false
		}
		if !haveLower && meta.Resolution.Height < height {
			lower = meta
			haveLower = true
		}
		return true
	})
	if haveExact {
		return exact, true
	}
	if haveLower {
		return lower, true
	}
	return l.lowest()
}

func (l *Ladder) lowest() (atypes.VariantMeta, bool) {
	var meta atypes.VariantMeta
	found := false
	l.tree.Ascend(func(item btree.Item) bool {
		meta = item.(*ladderItem).meta
		found = true
		return false
	})
	return meta, found
}
