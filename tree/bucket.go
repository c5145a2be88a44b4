package tree

import (
	"slices"
	"strconv"
)

const (
	bucketType = "type-"
	bucketName = "name-"
)

func TypeBucket(k Kind) string {
	return bucketType + strconv.Itoa(int(k))
}

func NameBucket(local string) string {
	return bucketName + local
}

// Buckets returns every bucket a node belongs to.
func Buckets(f Facade, n Node) []string {
	k := f.Kind(n)
	list := []string{TypeBucket(k)}
	if k == KindElement || k == KindAttribute {
		list = append(list, NameBucket(f.Name(n).Name))
	}
	return list
}

// Compatible reports whether an expression declaring bucket could match
// node. The empty bucket is compatible with every node.
func Compatible(f Facade, n Node, bucket string) bool {
	if bucket == "" {
		return true
	}
	return slices.Contains(Buckets(f, n), bucket)
}
