package children

import "context"

// OwnerOf expone el cuidador principal de un perfil.
// Evita ciclos de imports entre módulos (children <-> accessgrants).
func (s *Service) OwnerOf(ctx context.Context, childID string) (string, error) {
	c, err := s.GetByID(ctx, childID)
	if err != nil {
		return "", err
	}
	return c.CaregiverUserID, nil
}
