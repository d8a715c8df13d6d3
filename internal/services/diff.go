package services

// diffSets 计算把 current 变为 desired 需要新增和删除的元素，desired 中的重复元素只计一次
func diffSets[T comparable](current, desired []T) (add, remove []T) {
	cur := make(map[T]struct{}, len(current))
	for _, v := range current {
		cur[v] = struct{}{}
	}
	want := make(map[T]struct{}, len(desired))
	for _, v := range desired {
		if _, seen := want[v]; seen {
			continue
		}
		want[v] = struct{}{}
		if _, ok := cur[v]; !ok {
			add = append(add, v)
		}
	}
	for _, v := range current {
		if _, ok := want[v]; !ok {
			remove = append(remove, v)
			// current 来自联合主键，本身不重复；重复时也只删一次
			want[v] = struct{}{}
		}
	}
	return add, remove
}

// unique 去重并保持原有顺序
func unique[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
