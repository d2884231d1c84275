package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Разрешение контролов и биндингов
	ResolveInfo              Code = 1000
	ResolveUnknownTag        Code = 1001
	ResolveUnknownBinding    Code = 1002
	ResolveInvalidRule       Code = 1003
	ResolveMarkupControl     Code = 1004
	ResolveUnknownProperty   Code = 1005
	ResolveUnknownType       Code = 1006
	ResolveMetadata          Code = 1007
	ResolveBindingNotAllowed Code = 1008
	ResolveContentNotAllowed Code = 1009
	ResolveInvalidValue      Code = 1010

	// Генерация кода
	EmitInfo               Code = 2000
	EmitUnsupportedValue   Code = 2001
	EmitMalformedMetadata  Code = 2002
	EmitEmptyMethodStack   Code = 2003
	EmitInvalidConstructor Code = 2004
	EmitOutput             Code = 2005
	EmitDuplicateName      Code = 2006
	EmitProcessLocal       Code = 2007

	// Ввод/вывод
	IOInfo          Code = 3000
	IOLoadFileError Code = 3001
	IOTreeFormat    Code = 3002
	IOConfig        Code = 3003
	IOWriteError    Code = 3004
)

var codeDescription = map[Code]string{
	UnknownCode:              "Unknown error",
	ResolveInfo:              "Resolution information",
	ResolveUnknownTag:        "Control could not be resolved",
	ResolveUnknownBinding:    "Unknown binding type",
	ResolveInvalidRule:       "Invalid markup control rule",
	ResolveMarkupControl:     "Markup control could not be loaded",
	ResolveUnknownProperty:   "Unknown control property",
	ResolveUnknownType:       "Unknown type",
	ResolveMetadata:          "Control metadata could not be built",
	ResolveBindingNotAllowed: "Property does not accept bindings",
	ResolveContentNotAllowed: "Control does not allow content",
	ResolveInvalidValue:      "Invalid property value",
	EmitInfo:                 "Emitter information",
	EmitUnsupportedValue:     "Value cannot be emitted",
	EmitMalformedMetadata:    "Malformed control metadata",
	EmitEmptyMethodStack:     "No method is being emitted",
	EmitInvalidConstructor:   "Type cannot be constructed",
	EmitOutput:               "Compilation unit could not be assembled",
	EmitDuplicateName:        "Views generate the same builder name",
	EmitProcessLocal:         "Compilation unit depends on the compiling process",
	IOInfo:                   "I/O information",
	IOLoadFileError:          "I/O load file error",
	IOTreeFormat:             "Malformed view tree",
	IOConfig:                 "Invalid configuration",
	IOWriteError:             "I/O write error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("EMT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
