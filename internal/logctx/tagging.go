package logctx

import (
	"context"
	"statefeed/internal/global"
)

// Appends one or more tags to the context tag list.
// Copy-on-write, the parent context's list is never mutated.
func AppendCtxTag(ctx context.Context, newTags ...string) (newCtx context.Context) {
	old := GetTagList(ctx)
	tags := make([]string, 0, len(old)+len(newTags))
	tags = append(tags, old...)
	tags = append(tags, newTags...)

	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Removes last index of tag list (copy-on-write)
func RemoveLastCtxTag(ctx context.Context) (newCtx context.Context) {
	tags := append([]string(nil), GetTagList(ctx)...)
	if len(tags) > 0 {
		tags = tags[:len(tags)-1]
	}

	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Overwrites entire tag list with given list
func OverwriteCtxTag(ctx context.Context, newList []string) (newCtx context.Context) {
	newCtx = context.WithValue(ctx, global.LogTagsKey, append([]string(nil), newList...))
	return
}

// Extracts tag list from context or returns empty array
func GetTagList(ctx context.Context) (tags []string) {
	tags, validAssert := ctx.Value(global.LogTagsKey).([]string)
	if !validAssert {
		tags = []string{}
	}
	return
}
