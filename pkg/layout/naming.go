package layout

import "fmt"

// ModelNamespace prefixes every symbol of a model tree.
const ModelNamespace = "wld::fld::data"

func ModelFiles(id string) string {
	return fmt.Sprintf("%s::^%s_model_files", ModelNamespace, id)
}

func States(id string) string {
	return fmt.Sprintf("%s::^%s_state", ModelNamespace, id)
}

// FaceGroups names the face group array of a model's state.
func FaceGroups(id string, state int) string {
	return fmt.Sprintf("%s::^%s_state%d", ModelNamespace, id, state)
}

func Faces(id string, state, group int) string {
	return fmt.Sprintf("%s::^%s_state%d_face%d", ModelNamespace, id, state, group)
}

// Animations names the k-th animation array of a model. k counts the
// faces that own animations, state by state and face group by face group.
func Animations(id string, k int) string {
	return fmt.Sprintf("%s::^%s_anime%d", ModelNamespace, id, k)
}

func MaplinkNodes(stage string) string {
	return fmt.Sprintf("wld::fld::data::maplink::%s_nodes", stage)
}
