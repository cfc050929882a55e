package prompts

// Library defines the interface for the complete prompt library.
type Library interface {
	ElaborateCharacter() ElaborateCharacterPrompt
	ElaborateOrganization() ElaborateOrganizationPrompt
}

// LibraryImpl implements the Library interface.
type LibraryImpl struct {
	elaborateCharacter    ElaborateCharacterPrompt
	elaborateOrganization ElaborateOrganizationPrompt
}

func (l *LibraryImpl) ElaborateCharacter() ElaborateCharacterPrompt { return l.elaborateCharacter }

func (l *LibraryImpl) ElaborateOrganization() ElaborateOrganizationPrompt {
	return l.elaborateOrganization
}

// NewLibrary creates a new prompt library instance.
func NewLibrary() Library {
	return &LibraryImpl{
		elaborateCharacter:    NewElaborateCharacterVersions(),
		elaborateOrganization: NewElaborateOrganizationVersions(),
	}
}
