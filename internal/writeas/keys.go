package writeas

import "strconv"

// Operation names double as cache-key prefixes and metric labels.
const (
	opGetAllPosts          = "GetAllPosts"
	opGetPostsByPageNumber = "GetPostsByPageNumber"
	opGetPostBySlug        = "GetPostBySlug"
	opGetPostByID          = "GetPostById"
)

func allPostsKey(alias string) string { return opGetAllPosts + ":" + alias }

func pageKey(alias string, page int) string {
	return opGetPostsByPageNumber + ":" + alias + ":" + strconv.Itoa(page)
}

func slugKey(alias, slug string) string { return opGetPostBySlug + ":" + alias + ":" + slug }

func idKey(id string) string { return opGetPostByID + ":" + id }
