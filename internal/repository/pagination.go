package repository

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paginate normalises page inputs and returns page, size and row offset.
func paginate(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, (page - 1) * size
}
