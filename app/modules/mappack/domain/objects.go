package mappackdomain

// Map geometry and binary layout constants.
const (
	Rows        = 23
	Columns     = 42
	ObjectCount = 40
	// HeaderLen is the size of the userlevel header preceding the tile data.
	HeaderLen = 0xB8
	// MaxTile is the highest valid tile shape.
	MaxTile = 33
	// QTUnset is the query type written in dumped headers.
	QTUnset = 37
)

// Object type IDs with special handling.
const (
	IDGold             = 2
	IDExit             = 3
	IDExitSwitch       = 4
	IDDoorLocked       = 6
	IDDoorLockedSwitch = 7
	IDDoorTrap         = 8
	IDDoorTrapSwitch   = 9
)

// ObjectSpec describes how an object type is stored in Metanet map files.
type ObjectSpec struct {
	ID int
	// Atts is the number of attribute bytes per record in the old format.
	Atts int
	// Old is the block position in the old format, -1 when the type has no block of its own.
	Old int
}

// ObjectSpecs indexed by object type ID.
var ObjectSpecs = []ObjectSpec{
	{0, 2, 0}, {1, 2, 1}, {2, 2, 2}, {3, 4, 3}, {4, 0, -1},
	{5, 3, 4}, {6, 5, 5}, {7, 0, -1}, {8, 5, 6}, {9, 0, -1},
	{10, 3, 7}, {11, 3, 8}, {12, 4, 9}, {13, 4, 10}, {14, 4, 11},
	{15, 4, 12}, {16, 2, 13}, {17, 2, 14}, {18, 2, 15}, {19, 2, 16},
	{20, 3, 17}, {21, 2, 18}, {22, 2, 19}, {23, 4, 20}, {24, 2, 21},
	{25, 2, 22}, {26, 4, 23}, {27, 2, 24}, {28, 2, 25},
}

// oldFormatOrder lists the specs that own a block, in block order.
func oldFormatOrder() []ObjectSpec {
	order := make([]ObjectSpec, 0, len(ObjectSpecs))
	for _, s := range ObjectSpecs {
		if s.Old >= 0 {
			order = append(order, s)
		}
	}
	// ObjectSpecs is already sorted by Old for the types that have one.
	return order
}

// splitsIntoSwitch reports whether an old-format record carries a door and its switch.
func splitsIntoSwitch(id int) bool {
	return id == IDExit || id == IDDoorLocked || id == IDDoorTrap
}

// Object is a 5-byte map entity: type, x, y, orientation, mode.
type Object [5]uint8

func (o Object) Type() int { return int(o[0]) }

// sortKey keeps doors and their switches staggered when sorting by type.
func (o Object) sortKey() int {
	switch o[0] {
	case IDDoorLockedSwitch:
		return IDDoorLocked
	case IDDoorTrapSwitch:
		return IDDoorTrap
	}
	return int(o[0])
}

// ObjectCounts counts objects per type.
func ObjectCounts(objects []Object) [ObjectCount]uint16 {
	var counts [ObjectCount]uint16
	for _, o := range objects {
		if int(o[0]) < ObjectCount {
			counts[o[0]]++
		}
	}
	return counts
}
