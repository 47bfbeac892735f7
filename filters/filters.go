package filters

import "github.com/aarsakian/MFTRecover/recovery"

type Filter interface {
	Execute(candidates recovery.Candidates) recovery.Candidates
}

type NameFilter struct {
	Filenames []string
}

func (nameFilter NameFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	return candidates.FilterByNames(nameFilter.Filenames)
}

type PathFilter struct {
	NamePath string
}

func (pathFilter PathFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	return candidates.FilterByPath(pathFilter.NamePath)
}

type ExtensionsFilter struct {
	Extensions []string
}

func (extensionsFilter ExtensionsFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	return candidates.FilterByExtensions(extensionsFilter.Extensions)
}

type DeletedFilter struct {
	Include bool
}

// Execute keeps only deleted candidates when Include is set.
func (deletedFilter DeletedFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	if deletedFilter.Include {
		return candidates.FilterDeleted()
	}
	return candidates
}

type FoldersFilter struct {
	Include bool
}

func (foldersFilter FoldersFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	if !foldersFilter.Include {
		return candidates.FilterOutFolders()
	}
	return candidates
}

type RecoverableFilter struct {
	Percent float64
}

func (recoverableFilter RecoverableFilter) Execute(candidates recovery.Candidates) recovery.Candidates {
	if recoverableFilter.Percent <= 0 {
		return candidates
	}
	return candidates.FilterByRecoverability(recoverableFilter.Percent)
}
