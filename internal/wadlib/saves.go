package wadlib

// SaveFinder lists candidate save files on disk. FindSaves covers the
// configured save directories; FindSavesIn lists one directory.
type SaveFinder interface {
	FindSaves() ([]string, error)
	FindSavesIn(dir string) ([]string, error)
}
